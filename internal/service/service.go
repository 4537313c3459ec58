// Package service implements the application's operations on top of the
// repositories. Callers identify the acting user by id; 0 is anonymous.
package service

import (
	"context"
	"log/slog"
	"time"

	"timeout/internal/cache"
	"timeout/internal/featureflags"
	"timeout/internal/repository"
)

// DefaultFeedLimit is the page size used when neither caller nor config sets one.
const DefaultFeedLimit = 50

// Deps are the collaborators services are built from. Only Repos and Tx are
// required; a nil Cache, Notifier or Flags disables that concern.
type Deps struct {
	Repos     repository.Repos
	Tx        repository.Transactor
	Cache     *cache.Store
	Notifier  Notifier
	Flags     *featureflags.Manager
	Location  *time.Location
	Now       Clock
	FeedLimit int
}

func (d Deps) clock() Clock {
	if d.Now == nil {
		return systemClock
	}
	return d.Now
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func (d Deps) realtime() realtime {
	return realtime{notifier: d.Notifier, flags: d.Flags}
}

// Clock returns the current instant. Services never read the wall clock directly.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Notifier pushes realtime events to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uint, eventType string, payload interface{}) error
}

// realtime sends best-effort notifications gated by the realtime_push flag.
type realtime struct {
	notifier Notifier
	flags    *featureflags.Manager
}

func (r realtime) send(ctx context.Context, userID uint, eventType string, payload interface{}) {
	if r.notifier == nil || userID == 0 {
		return
	}
	if r.flags != nil && !r.flags.Enabled(featureflags.RealtimePush, userID) {
		return
	}
	if err := r.notifier.Notify(ctx, userID, eventType, payload); err != nil {
		slog.WarnContext(ctx, "realtime notification failed",
			"type", eventType, "user_id", userID, "err", err)
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
