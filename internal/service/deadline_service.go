package service

import (
	"context"

	"timeout/internal/cache"
	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/scheduler"
)

// Deadline is an incomplete deadline decorated with its urgency.
type Deadline struct {
	Event   models.Event      `json:"event"`
	Urgency scheduler.Urgency `json:"urgency"`
}

// DeadlineList is the deadlines page: every active deadline plus counts.
type DeadlineList struct {
	Deadlines []Deadline `json:"deadlines"`
	Overdue   int        `json:"overdue"`
	Urgent    int        `json:"urgent"`
	Total     int        `json:"total"`
}

type DeadlineService struct {
	events repository.EventRepository
	cache  *cache.Store
	now    Clock
}

func NewDeadlineService(d Deps) *DeadlineService {
	return &DeadlineService{events: d.Repos.Events, cache: d.Cache, now: d.clock()}
}

// Active lists the user's incomplete deadlines, soonest end first.
func (s *DeadlineService) Active(ctx context.Context, userID uint) (*DeadlineList, error) {
	events, err := s.events.ListActiveDeadlines(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &DeadlineList{Deadlines: make([]Deadline, 0, len(events)), Total: len(events)}
	for i := range events {
		u := scheduler.ClassifyUrgency(&events[i], now)
		switch u.Status {
		case scheduler.UrgencyOverdue:
			out.Overdue++
		case scheduler.UrgencyUrgent:
			out.Urgent++
		}
		out.Deadlines = append(out.Deadlines, Deadline{Event: events[i], Urgency: u})
	}
	return out, nil
}

// MarkComplete completes one of the user's deadlines. A missing, foreign,
// non-deadline or already completed event is a no-op: it returns nil, nil.
func (s *DeadlineService) MarkComplete(ctx context.Context, userID, id uint) (*models.Event, error) {
	n, err := s.events.MarkDeadlineComplete(ctx, userID, id, s.now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	s.cache.Invalidate(ctx, cache.StatisticsKey(userID))
	return s.events.GetOwned(ctx, userID, id)
}
