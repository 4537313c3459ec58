package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/service"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Scenario is a hand-written fixture: named accounts with their calendars,
// posts, notes and follow edges. Event times are offsets from the run's now.
type Scenario struct {
	Users []ScenarioUser `yaml:"users"`
}

type ScenarioUser struct {
	Username   string          `yaml:"username"`
	Email      string          `yaml:"email"`
	FirstName  string          `yaml:"first_name"`
	LastName   string          `yaml:"last_name"`
	University string          `yaml:"university"`
	Year       int             `yaml:"year"`
	Staff      bool            `yaml:"staff"`
	Follows    []string        `yaml:"follows"`
	Events     []ScenarioEvent `yaml:"events"`
	Posts      []ScenarioPost  `yaml:"posts"`
	Notes      []ScenarioNote  `yaml:"notes"`
}

type ScenarioEvent struct {
	Title      string            `yaml:"title"`
	Type       models.EventType  `yaml:"type"`
	In         time.Duration     `yaml:"in"`
	Duration   time.Duration     `yaml:"duration"`
	Recurrence models.Recurrence `yaml:"recurrence"`
	Visibility models.Visibility `yaml:"visibility"`
	Location   string            `yaml:"location"`
	AllDay     bool              `yaml:"all_day"`
}

type ScenarioPost struct {
	Content string             `yaml:"content"`
	Privacy models.PostPrivacy `yaml:"privacy"`
}

type ScenarioNote struct {
	Title    string              `yaml:"title"`
	Content  string              `yaml:"content"`
	Category models.NoteCategory `yaml:"category"`
	Pinned   bool                `yaml:"pinned"`
}

// ParseScenario decodes a YAML scenario. Unknown keys are rejected.
func ParseScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	seen := make(map[string]bool, len(sc.Users))
	for _, u := range sc.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("parse scenario: user without username")
		}
		if seen[u.Username] {
			return nil, fmt.Errorf("parse scenario: duplicate user %q", u.Username)
		}
		seen[u.Username] = true
	}
	// A repeated edge would toggle the follow back off.
	for _, u := range sc.Users {
		follows := make(map[string]bool, len(u.Follows))
		for _, name := range u.Follows {
			switch {
			case !seen[name]:
				return nil, fmt.Errorf("parse scenario: %s follows unknown user %q", u.Username, name)
			case name == u.Username:
				return nil, fmt.Errorf("parse scenario: %s follows itself", u.Username)
			case follows[name]:
				return nil, fmt.Errorf("parse scenario: %s follows %q twice", u.Username, name)
			}
			follows[name] = true
		}
	}
	return &sc, nil
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseScenario(f)
}

// ApplyScenario creates the scenario's accounts and content. Events, posts and
// notes go through the services so the same rules apply as over HTTP.
func ApplyScenario(ctx context.Context, db *gorm.DB, sc *Scenario, opts Options) (map[string]*models.User, error) {
	f := NewFactory(db, opts)
	deps := opts.deps(db)
	social := service.NewSocialService(deps)
	events := service.NewEventService(deps, service.MirrorPostHook{Now: opts.now})
	posts := service.NewPostService(deps)
	notes := service.NewNoteService(deps)

	users := make(map[string]*models.User, len(sc.Users))
	for _, su := range sc.Users {
		su := su
		u, err := f.CreateUser(func(u *models.User) {
			u.Username = su.Username
			u.Email = su.Email
			if u.Email == "" {
				u.Email = su.Username + "@example.com"
			}
			u.FirstName, u.LastName = su.FirstName, su.LastName
			u.University, u.YearOfStudy = su.University, su.Year
			u.IsStaff = su.Staff
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", su.Username, err)
		}
		users[su.Username] = u
	}

	now := opts.now()
	for _, su := range sc.Users {
		u := users[su.Username]
		for _, name := range su.Follows {
			if _, err := social.ToggleFollow(ctx, u.ID, users[name].ID); err != nil {
				return nil, fmt.Errorf("%s follows %s: %w", su.Username, name, err)
			}
		}
		for _, se := range su.Events {
			duration := se.Duration
			if duration <= 0 {
				duration = time.Hour
			}
			start := now.Add(se.In)
			_, err := events.Create(ctx, u.ID, service.EventInput{
				Title:      se.Title,
				EventType:  se.Type,
				Recurrence: se.Recurrence,
				Visibility: se.Visibility,
				Location:   se.Location,
				IsAllDay:   se.AllDay,
				Start:      start,
				End:        start.Add(duration),
			})
			if err != nil {
				return nil, fmt.Errorf("%s event %q: %w", su.Username, se.Title, err)
			}
		}
		for _, sp := range su.Posts {
			if _, err := posts.CreatePost(ctx, u.ID, service.PostInput{Content: sp.Content, Privacy: sp.Privacy}); err != nil {
				return nil, fmt.Errorf("%s post: %w", su.Username, err)
			}
		}
		for _, sn := range su.Notes {
			note, err := notes.Create(ctx, u.ID, service.NoteInput{Title: sn.Title, Content: sn.Content, Category: sn.Category})
			if err != nil {
				return nil, fmt.Errorf("%s note %q: %w", su.Username, sn.Title, err)
			}
			if sn.Pinned {
				if _, err := notes.TogglePin(ctx, u.ID, note.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	middleware.Logger.Info("scenario applied", "users", len(users))
	return users, nil
}
