package repository

import (
	"context"
	"time"

	"timeout/internal/models"
	"timeout/internal/observability"

	"gorm.io/gorm"
)

// EventRepository defines persistence operations for calendar events.
type EventRepository interface {
	Create(ctx context.Context, ev *models.Event) error
	Update(ctx context.Context, ev *models.Event) error
	Delete(ctx context.Context, id uint) error
	// GetOwned returns NOT_FOUND for missing events and for events of other users.
	GetOwned(ctx context.Context, userID, id uint) (*models.Event, error)
	// ListOverlapping returns the creator's events whose interval strictly
	// overlaps [start, end), ordered by start then id. excludeID 0 excludes nothing.
	ListOverlapping(ctx context.Context, creatorID uint, start, end time.Time, excludeID uint) ([]models.Event, error)
	// ListInRange returns events overlapping [from, to). Zero bounds are open.
	ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.Event, error)
	// ListForWindow returns events overlapping the window plus recurring events
	// that started before its end.
	ListForWindow(ctx context.Context, userID uint, windowStart, windowEnd time.Time) ([]models.Event, error)
	ListActiveDeadlines(ctx context.Context, userID uint) ([]models.Event, error)
	// MarkDeadlineComplete flips an incomplete deadline owned by userID and
	// returns the number of rows changed.
	MarkDeadlineComplete(ctx context.Context, userID, id uint, at time.Time) (int64, error)
}

type eventRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewEventRepository returns a gorm EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db, log: observability.NewRepoLogger("events")}
}

func (r *eventRepository) Create(ctx context.Context, ev *models.Event) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"event_id": ev.ID, "creator_id": ev.CreatorID})
	return nil
}

func (r *eventRepository) Update(ctx context.Context, ev *models.Event) error {
	if err := r.db.WithContext(ctx).Omit("Creator").Save(ev).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"event_id": ev.ID})
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Event{}, id).Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"event_id": id})
	return nil
}

func (r *eventRepository) GetOwned(ctx context.Context, userID, id uint) (*models.Event, error) {
	var ev models.Event
	err := r.db.WithContext(ctx).
		Where("id = ? AND creator_id = ?", id, userID).
		First(&ev).Error
	if err != nil {
		return nil, notFound(err, "Event", id)
	}
	return &ev, nil
}

func (r *eventRepository) ListOverlapping(ctx context.Context, creatorID uint, start, end time.Time, excludeID uint) ([]models.Event, error) {
	q := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Where("start_datetime < ? AND end_datetime > ?", end, start).
		Where("status <> ?", models.EventStatusCancelled)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var events []models.Event
	if err := q.Order("start_datetime ASC, id ASC").Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *eventRepository) ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.Event, error) {
	q := r.db.WithContext(ctx).Where("creator_id = ?", userID)
	if !to.IsZero() {
		q = q.Where("start_datetime < ?", to)
	}
	if !from.IsZero() {
		q = q.Where("end_datetime > ?", from)
	}
	if from.IsZero() && to.IsZero() {
		q = q.Order("start_datetime DESC, id DESC")
	} else {
		q = q.Order("start_datetime ASC, id ASC")
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *eventRepository) ListForWindow(ctx context.Context, userID uint, windowStart, windowEnd time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", userID).
		Where(
			r.db.Where("start_datetime < ? AND end_datetime > ?", windowEnd, windowStart).
				Or("recurrence <> ? AND start_datetime < ?", models.RecurrenceNone, windowEnd),
		).
		Order("start_datetime ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *eventRepository) ListActiveDeadlines(ctx context.Context, userID uint) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND event_type = ? AND is_completed = ? AND status <> ?",
			userID, models.EventTypeDeadline, false, models.EventStatusCancelled).
		Order("end_datetime ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *eventRepository) MarkDeadlineComplete(ctx context.Context, userID, id uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND creator_id = ? AND event_type = ? AND is_completed = ?",
			id, userID, models.EventTypeDeadline, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"status":       models.EventStatusCompleted,
			"updated_at":   at,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "mark_complete")
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
