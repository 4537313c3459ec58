// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"timeout/internal/middleware"
	"timeout/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every generated account shares.
const DefaultPassword = "password123"

var universities = []string{
	"King's College London", "University of Manchester", "University of Leeds",
	"University of Edinburgh", "University of Bristol", "UCL",
}

var modules = []string{
	"Algorithms", "Databases", "Operating Systems", "Linear Algebra",
	"Compilers", "Networks", "Machine Learning", "Software Engineering",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A non-zero
// opts.RandSeed makes the generated content reproducible.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			middleware.Logger.Error("bcrypt failed; storing plain seed password", "error", err)
			return DefaultPassword
		}
		f.hash = string(hashed)
	}
	return f.hash
}

func (f *Factory) create(v interface{}, setID func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		setID(f.nextID)
		return nil
	}
	return f.db.Create(v).Error
}

// BuildUser constructs a sample student without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s%s%d", first[:1], last, gofakeit.Number(100, 999)))
	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    f.passwordHash(),
		FirstName:   first,
		LastName:    last,
		Bio:         gofakeit.Sentence(10),
		University:  gofakeit.RandomString(universities),
		YearOfStudy: gofakeit.Number(1, 4),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.create(user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post dated somewhere in the last MaxDays days.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	created := f.opts.now().Add(-time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute)

	privacy := models.PrivacyPublic
	if f.rng.Intn(4) == 0 {
		privacy = models.PrivacyFollowersOnly
	}
	post := &models.Post{
		AuthorID:  author.ID,
		Content:   gofakeit.Paragraph(1, 2, 12, " "),
		Privacy:   privacy,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample `models.Post` for the given user.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.create(post, func(id uint) { post.ID = id }); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment adds a comment by user on post.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Content:  gofakeit.Sentence(8),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.create(comment, func(id uint) { comment.ID = id }); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records that user likes post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	like := &models.Like{UserID: user.ID, PostID: post.ID}
	return f.create(like, func(id uint) { like.ID = id })
}

// CreateBookmark records that user bookmarked post.
func (f *Factory) CreateBookmark(user *models.User, post *models.Post) error {
	b := &models.Bookmark{UserID: user.ID, PostID: post.ID}
	return f.create(b, func(id uint) { b.ID = id })
}

// EventTitle invents a plausible title for an event of type t.
func (f *Factory) EventTitle(t models.EventType) string {
	module := gofakeit.RandomString(modules)
	switch t {
	case models.EventTypeDeadline:
		return module + " coursework"
	case models.EventTypeExam:
		return module + " exam"
	case models.EventTypeClass:
		return module + " lecture"
	case models.EventTypeMeeting:
		return "Project meeting"
	case models.EventTypeStudySession:
		return module + " revision"
	default:
		return gofakeit.HipsterWord() + " social"
	}
}

// NoteBody invents a title and body for a note.
func (f *Factory) NoteBody() (string, string) {
	return gofakeit.RandomString(modules) + " notes", gofakeit.Paragraph(2, 3, 10, "\n\n")
}

// Intn exposes the factory's random source so callers stay reproducible.
func (f *Factory) Intn(n int) int {
	return f.rng.Intn(n)
}
