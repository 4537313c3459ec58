package seed

import (
	"context"
	"fmt"
	"time"

	"timeout/internal/cache"
	"timeout/internal/database"
	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers      int
	PostsPerUser  int
	EventsPerUser int
	NotesPerUser  int
	ShouldClean   bool
	DryRun        bool
	SkipBcrypt    bool
	MaxDays       int
	RandSeed      int64
	// Now anchors generated dates. Zero means the current time.
	Now time.Time
	// Cache is kept consistent with the follow graph the seeder writes.
	// Nil when no Redis is configured.
	Cache *cache.Store
}

func (o Options) deps(db *gorm.DB) service.Deps {
	return service.Deps{
		Repos: repository.New(db),
		Tx:    repository.NewTransactor(db),
		Cache: o.Cache,
		Now:   o.now,
	}
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now
}

// Summary counts what a seeding run created.
type Summary struct {
	Users     int
	Events    int
	Posts     int
	Comments  int
	Likes     int
	Follows   int
	Notes     int
	Conflicts int
}

// Seed populates the database with demo students, their calendars and a
// social graph. Events and notes go through the services, so conflict rules
// and mirror posts hold for seeded data too.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	middleware.Logger.Info("starting database seeding",
		"users", opts.NumUsers, "posts_per_user", opts.PostsPerUser, "events_per_user", opts.EventsPerUser)

	if opts.ShouldClean && !opts.DryRun {
		if err := Clean(ctx, db, opts.Cache); err != nil {
			middleware.Logger.Warn("could not clear all existing data, continuing", "error", err)
		}
	}

	f := NewFactory(db, opts)
	sum := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if opts.DryRun || len(users) == 0 {
		return sum, nil
	}

	deps := opts.deps(db)
	events := service.NewEventService(deps, service.MirrorPostHook{Now: opts.now})
	notes := service.NewNoteService(deps)
	social := service.NewSocialService(deps)

	for _, u := range users {
		n, conflicts, err := seedCalendar(ctx, f, events, u, opts)
		if err != nil {
			return sum, err
		}
		sum.Events += n
		sum.Conflicts += conflicts

		for j := 0; j < opts.NotesPerUser; j++ {
			title, body := f.NoteBody()
			category := noteCategories[f.Intn(len(noteCategories))]
			if _, err := notes.Create(ctx, u.ID, service.NoteInput{Title: title, Content: body, Category: category}); err != nil {
				return sum, fmt.Errorf("failed to create note: %w", err)
			}
			sum.Notes++
		}
	}

	// Each user follows roughly a third of the others.
	for _, u := range users {
		for _, other := range users {
			if other.ID == u.ID || f.Intn(3) != 0 {
				continue
			}
			if _, err := social.ToggleFollow(ctx, u.ID, other.ID); err != nil {
				return sum, fmt.Errorf("failed to create follow: %w", err)
			}
			sum.Follows++
		}
	}

	posts := make([]*models.Post, 0, len(users)*opts.PostsPerUser)
	for _, u := range users {
		for j := 0; j < opts.PostsPerUser; j++ {
			p, err := f.CreatePost(u)
			if err != nil {
				return sum, fmt.Errorf("failed to create post: %w", err)
			}
			posts = append(posts, p)
		}
	}
	sum.Posts = len(posts)

	for _, p := range posts {
		for _, u := range users {
			if u.ID == p.AuthorID {
				continue
			}
			switch f.Intn(6) {
			case 0:
				if err := f.CreateLike(u, p); err != nil {
					return sum, fmt.Errorf("failed to create like: %w", err)
				}
				sum.Likes++
			case 1:
				if _, err := f.CreateComment(u, p); err != nil {
					return sum, fmt.Errorf("failed to create comment: %w", err)
				}
				sum.Comments++
			}
		}
	}

	middleware.Logger.Info("database seeding completed",
		"users", sum.Users, "events", sum.Events, "posts", sum.Posts, "follows", sum.Follows,
		"notes", sum.Notes, "skipped_conflicts", sum.Conflicts)
	return sum, nil
}

var (
	eventTypes = []models.EventType{
		models.EventTypeClass, models.EventTypeClass, models.EventTypeDeadline, models.EventTypeExam,
		models.EventTypeMeeting, models.EventTypeStudySession, models.EventTypeOther,
	}
	noteCategories = []models.NoteCategory{
		models.NoteCategoryLecture, models.NoteCategoryTodo, models.NoteCategoryStudyPlan,
		models.NoteCategoryPersonal, models.NoteCategoryOther,
	}
)

// seedCalendar spreads a user's events over the weeks around now. Classes
// repeat weekly; a conflicting slot is skipped and counted.
func seedCalendar(ctx context.Context, f *Factory, events *service.EventService, u *models.User, opts Options) (int, int, error) {
	created, conflicts := 0, 0
	base := opts.now().Truncate(24 * time.Hour)
	for j := 0; j < opts.EventsPerUser; j++ {
		t := eventTypes[f.Intn(len(eventTypes))]
		start := base.AddDate(0, 0, f.Intn(42)-14).Add(time.Duration(9+f.Intn(9)) * time.Hour)
		in := service.EventInput{
			Title:      f.EventTitle(t),
			EventType:  t,
			Start:      start,
			End:        start.Add(time.Duration(1+f.Intn(2)) * time.Hour),
			Visibility: models.VisibilityPrivate,
		}
		switch t {
		case models.EventTypeClass:
			in.Recurrence = models.RecurrenceWeekly
		case models.EventTypeExam, models.EventTypeOther:
			in.Visibility = models.VisibilityPublic
		}
		if start.Before(opts.now()) && t != models.EventTypeDeadline {
			in.Status = models.EventStatusCompleted
		}

		_, err := events.Create(ctx, u.ID, in)
		switch {
		case models.HasCode(err, models.CodeConflict):
			conflicts++
		case err != nil:
			return created, conflicts, fmt.Errorf("failed to create event: %w", err)
		default:
			created++
		}
	}
	return created, conflicts, nil
}

// Clean removes every row of every application table, children first, then
// drops the per-user cache entries. Ids restart after a reset, so a cached
// following set would otherwise attach to a different account.
func Clean(ctx context.Context, db *gorm.DB, store *cache.Store) error {
	middleware.Logger.Info("clearing existing data")
	if err := db.Exec("DELETE FROM conversation_participants").Error; err != nil {
		return err
	}
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(all[i]).Error; err != nil {
			return err
		}
	}
	n, err := store.InvalidateMatching(ctx, cache.UserScopedPatterns...)
	if err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	if n > 0 {
		middleware.Logger.Info("flushed cached user data", "keys", n)
	}
	return nil
}
