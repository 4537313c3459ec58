package repository

import (
	"context"
	"time"

	"timeout/internal/models"

	"gorm.io/gorm"
)

// StatisticsRepository answers the aggregate queries behind the dashboard.
type StatisticsRepository interface {
	CountByType(ctx context.Context, userID uint) (map[models.EventType]int64, error)
	// StartTimesSince returns the start of every event starting at or after since.
	StartTimesSince(ctx context.Context, userID uint, since time.Time) ([]time.Time, error)
	CountStarting(ctx context.Context, userID uint, types []models.EventType, from, to time.Time) (int64, error)
	DeadlineCompletion(ctx context.Context, userID uint) (completed, pending int64, err error)
}

type statisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository returns a gorm StatisticsRepository.
func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountByType(ctx context.Context, userID uint) (map[models.EventType]int64, error) {
	var rows []struct {
		EventType models.EventType
		N         int64
	}
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Select("event_type, COUNT(*) AS n").
		Where("creator_id = ?", userID).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[models.EventType]int64, len(rows))
	for _, row := range rows {
		out[row.EventType] = row.N
	}
	return out, nil
}

func (r *statisticsRepository) StartTimesSince(ctx context.Context, userID uint, since time.Time) ([]time.Time, error) {
	var starts []time.Time
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("creator_id = ? AND start_datetime >= ?", userID, since).
		Order("start_datetime").
		Pluck("start_datetime", &starts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return starts, nil
}

func (r *statisticsRepository) CountStarting(ctx context.Context, userID uint, types []models.EventType, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("creator_id = ? AND event_type IN ? AND start_datetime >= ? AND start_datetime < ?", userID, types, from, to).
		Where("status <> ?", models.EventStatusCancelled).
		Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *statisticsRepository) DeadlineCompletion(ctx context.Context, userID uint) (int64, int64, error) {
	var row struct {
		Completed int64
		Pending   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Select("COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) AS completed, "+
			"COALESCE(SUM(CASE WHEN is_completed THEN 0 ELSE 1 END), 0) AS pending").
		Where("creator_id = ? AND event_type = ?", userID, models.EventTypeDeadline).
		Scan(&row).Error
	if err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	return row.Completed, row.Pending, nil
}
