package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"timeout/internal/cache"
	"timeout/internal/featureflags"
	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/testutil"
)

// testNow is the fixed instant every service test runs at (a Friday).
var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type sentEvent struct {
	UserID  uint
	Type    string
	Payload interface{}
}

// recordingNotifier captures notifications instead of publishing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, userID uint, eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{UserID: userID, Type: eventType, Payload: payload})
	return nil
}

func (r *recordingNotifier) ofType(eventType string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.sent {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	deps     Deps
	notifier *recordingNotifier
	redis    *miniredis.Miniredis
}

// newFixture wires services over an in-memory database, miniredis and a
// fixed clock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := &recordingNotifier{}
	return &fixture{
		db: db,
		deps: Deps{
			Repos:    repository.New(db),
			Tx:       repository.NewTransactor(db),
			Cache:    cache.NewStore(rdb),
			Notifier: n,
			Flags:    featureflags.NewManager(""),
			Location: time.UTC,
			Now:      func() time.Time { return testNow },
		},
		notifier: n,
		redis:    mr,
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, name)
}

// stubTx runs fn against fixed repositories without a database.
type stubTx struct {
	repos repository.Repos
	calls int
}

func (s *stubTx) Transaction(_ context.Context, fn func(tx repository.Repos) error) error {
	s.calls++
	return fn(s.repos)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
