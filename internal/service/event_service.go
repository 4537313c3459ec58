package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"timeout/internal/cache"
	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/observability"
	"timeout/internal/repository"
	"timeout/internal/scheduler"
	"timeout/internal/validation"
)

// EventHook reacts to event writes inside the writing transaction. An error
// rolls the whole write back.
type EventHook interface {
	AfterSave(ctx context.Context, tx repository.Repos, ev *models.Event) error
	BeforeDelete(ctx context.Context, tx repository.Repos, ev *models.Event) error
}

// EventInput is the writable part of an event. Zero enum values fall back to
// the model defaults. All-day events only need Start.
type EventInput struct {
	Title         string             `json:"title" validate:"notblank,max=200"`
	Description   string             `json:"description" validate:"max=1000"`
	EventType     models.EventType   `json:"event_type" validate:"omitempty,event_type"`
	Status        models.EventStatus `json:"status" validate:"omitempty,oneof=upcoming ongoing completed cancelled"`
	Visibility    models.Visibility  `json:"visibility" validate:"omitempty,oneof=public private"`
	Recurrence    models.Recurrence  `json:"recurrence" validate:"omitempty,oneof=none daily weekly monthly"`
	Start         time.Time          `json:"start_datetime" validate:"required"`
	End           time.Time          `json:"end_datetime"`
	Location      string             `json:"location" validate:"max=200"`
	IsAllDay      bool               `json:"is_all_day"`
	AllowConflict bool               `json:"allow_conflict"`
}

// ProfileStatus is the headline event shown on a profile.
type ProfileStatus struct {
	State scheduler.ProfileState `json:"state"`
	Event *models.Event          `json:"event"`
}

type EventService struct {
	repos repository.Repos
	tx    repository.Transactor
	hooks []EventHook
	cache *cache.Store
	rt    realtime
	loc   *time.Location
	now   Clock
}

// NewEventService creates an EventService. hooks run in order after every
// save and before every delete.
func NewEventService(d Deps, hooks ...EventHook) *EventService {
	return &EventService{
		repos: d.Repos,
		tx:    d.Tx,
		hooks: hooks,
		cache: d.Cache,
		rt:    d.realtime(),
		loc:   d.location(),
		now:   d.clock(),
	}
}

// Location is the calendar timezone the service evaluates dates in.
func (s *EventService) Location() *time.Location {
	return s.loc
}

func (s *EventService) Create(ctx context.Context, userID uint, in EventInput) (ev *models.Event, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "EventService", "Create", attribute.Int64("user.id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	ev = &models.Event{CreatorID: userID}
	if err := s.apply(ev, in); err != nil {
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(tx repository.Repos) error {
		if err := s.checkConflicts(ctx, tx, ev); err != nil {
			return err
		}
		if err := tx.Events.Create(ctx, ev); err != nil {
			return err
		}
		return s.afterSave(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.saved(ctx, ev, "create")
	return ev, nil
}

func (s *EventService) Update(ctx context.Context, userID, id uint, in EventInput) (ev *models.Event, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "EventService", "Update",
		attribute.Int64("user.id", int64(userID)), attribute.Int64("event.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.tx.Transaction(ctx, func(tx repository.Repos) error {
		existing, err := tx.Events.GetOwned(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.apply(existing, in); err != nil {
			return err
		}
		existing.UpdatedAt = s.now()
		if err := s.checkConflicts(ctx, tx, existing); err != nil {
			return err
		}
		if err := tx.Events.Update(ctx, existing); err != nil {
			return err
		}
		ev = existing
		return s.afterSave(ctx, tx, existing)
	})
	if err != nil {
		return nil, err
	}

	s.saved(ctx, ev, "update")
	return ev, nil
}

// Delete removes an event the user owns. Hooks run first so the mirror post
// is gone before the event row.
func (s *EventService) Delete(ctx context.Context, userID, id uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "EventService", "Delete",
		attribute.Int64("user.id", int64(userID)), attribute.Int64("event.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.tx.Transaction(ctx, func(tx repository.Repos) error {
		ev, err := tx.Events.GetOwned(ctx, userID, id)
		if err != nil {
			return err
		}
		for _, h := range s.hooks {
			if err := h.BeforeDelete(ctx, tx, ev); err != nil {
				return err
			}
		}
		if err := tx.Notes.DetachEvent(ctx, ev.ID); err != nil {
			return err
		}
		return tx.Events.Delete(ctx, ev.ID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.StatisticsKey(userID))
	s.rt.send(ctx, userID, notifications.EventDeleted, map[string]uint{"id": id})
	return nil
}

func (s *EventService) Get(ctx context.Context, userID, id uint) (*models.Event, error) {
	return s.repos.Events.GetOwned(ctx, userID, id)
}

// List returns the user's events overlapping [from, to). Zero bounds are open.
func (s *EventService) List(ctx context.Context, userID uint, from, to time.Time) ([]models.Event, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, models.NewInvalidRangeError("from must be before to")
	}
	return s.repos.Events.ListInRange(ctx, userID, from, to)
}

// MonthGrid builds the calendar page for year/month in the service timezone.
func (s *EventService) MonthGrid(ctx context.Context, userID uint, year, month int) (grid scheduler.MonthGrid, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "EventService", "MonthGrid", attribute.Int64("user.id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	start, end := scheduler.MonthWindow(year, month, s.loc)
	events, err := s.repos.Events.ListForWindow(ctx, userID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return scheduler.MonthGrid{}, err
	}
	return scheduler.BuildMonthGrid(events, year, month, s.now().In(s.loc)), nil
}

// ProfileStatus picks the event to headline on the user's profile, if any.
func (s *EventService) ProfileStatus(ctx context.Context, userID uint) (*ProfileStatus, error) {
	now := s.now()
	events, err := s.repos.Events.ListOverlapping(ctx, userID,
		now.Add(-scheduler.ProfileWindow), now.Add(scheduler.ProfileWindow), 0)
	if err != nil {
		return nil, err
	}
	ev, state := scheduler.PickProfileEvent(events, now)
	if ev == nil {
		return nil, nil
	}
	return &ProfileStatus{State: state, Event: ev}, nil
}

// ExportICS renders every event the user owns as an iCalendar document.
func (s *EventService) ExportICS(ctx context.Context, userID uint, host string) (string, error) {
	events, err := s.repos.Events.ListInRange(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return "", err
	}
	return scheduler.ExportICS(events, host, s.loc, s.now()), nil
}

func (s *EventService) apply(ev *models.Event, in EventInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	start, end := in.Start, in.End
	if in.IsAllDay {
		day := start.In(s.loc)
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
		end = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, s.loc)
	} else if end.IsZero() {
		return models.NewValidationError("end_datetime is required")
	}

	ev.Title = strings.TrimSpace(in.Title)
	ev.Description = in.Description
	ev.EventType = orDefault(in.EventType, models.EventTypeOther)
	ev.Status = orDefault(in.Status, models.EventStatusUpcoming)
	ev.Visibility = orDefault(in.Visibility, models.VisibilityPrivate)
	ev.Recurrence = orDefault(in.Recurrence, models.RecurrenceNone)
	ev.StartDatetime = start.UTC()
	ev.EndDatetime = end.UTC()
	ev.Location = in.Location
	ev.IsAllDay = in.IsAllDay
	ev.AllowConflict = in.AllowConflict
	return nil
}

func (s *EventService) checkConflicts(ctx context.Context, tx repository.Repos, ev *models.Event) error {
	var existing []models.Event
	if ev.StartDatetime.Before(ev.EndDatetime) && !scheduler.IsOverlapExempt(ev.EventType) &&
		!ev.AllowConflict && ev.Status != models.EventStatusCancelled {
		var err error
		existing, err = tx.Events.ListOverlapping(ctx, ev.CreatorID, ev.StartDatetime, ev.EndDatetime, ev.ID)
		if err != nil {
			return err
		}
	}
	if err := scheduler.ValidateEvent(ev, existing); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			observability.EventConflicts.Inc()
		}
		return err
	}
	return nil
}

func (s *EventService) afterSave(ctx context.Context, tx repository.Repos, ev *models.Event) error {
	for _, h := range s.hooks {
		if err := h.AfterSave(ctx, tx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventService) saved(ctx context.Context, ev *models.Event, op string) {
	observability.EventsSaved.WithLabelValues(op).Inc()
	s.cache.Invalidate(ctx, cache.StatisticsKey(ev.CreatorID))
	s.rt.send(ctx, ev.CreatorID, notifications.EventSaved, ev)
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

// MirrorPostHook keeps a public event's feed post in step with the event:
// public events own exactly one mirror post, private ones none.
type MirrorPostHook struct {
	Location *time.Location
	Now      Clock
}

func (h MirrorPostHook) AfterSave(ctx context.Context, tx repository.Repos, ev *models.Event) error {
	mirror, err := tx.Posts.GetMirror(ctx, ev.ID)
	if err != nil {
		return err
	}

	if ev.Visibility != models.VisibilityPublic {
		if mirror == nil {
			return nil
		}
		return tx.Posts.DeleteMirror(ctx, ev.ID)
	}

	content := h.content(ev)
	if mirror != nil {
		mirror.Content = content
		mirror.Privacy = models.PrivacyPublic
		mirror.UpdatedAt = h.now()
		return tx.Posts.UpdateContent(ctx, mirror)
	}

	eventID := ev.ID
	return tx.Posts.Create(ctx, &models.Post{
		AuthorID:      ev.CreatorID,
		Content:       content,
		Privacy:       models.PrivacyPublic,
		EventID:       &eventID,
		IsEventMirror: true,
	})
}

func (h MirrorPostHook) BeforeDelete(ctx context.Context, tx repository.Repos, ev *models.Event) error {
	if err := tx.Posts.DeleteMirror(ctx, ev.ID); err != nil {
		return err
	}
	return tx.Posts.DetachEvent(ctx, ev.ID)
}

func (h MirrorPostHook) content(ev *models.Event) string {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString(ev.Title)
	if d := strings.TrimSpace(ev.Description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(d)
	}
	start := ev.StartDatetime.In(loc)
	if ev.IsAllDay {
		fmt.Fprintf(&b, "\n\n%s (all day)", start.Format("Mon 2 Jan 2006"))
	} else {
		fmt.Fprintf(&b, "\n\n%s", start.Format("Mon 2 Jan 2006, 15:04"))
	}
	if ev.Location != "" {
		fmt.Fprintf(&b, " at %s", ev.Location)
	}
	return truncate(b.String(), models.MaxPostContentLength)
}

func (h MirrorPostHook) now() time.Time {
	if h.Now == nil {
		return systemClock()
	}
	return h.Now()
}
