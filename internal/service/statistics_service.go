package service

import (
	"context"
	"time"

	"timeout/internal/cache"
	"timeout/internal/featureflags"
	"timeout/internal/models"
	"timeout/internal/repository"
)

const (
	statsWeeks  = 8
	statsMonths = 6
	soonWindow  = 7 * 24 * time.Hour
)

// Bucket is one bar of a statistics chart.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Statistics summarises a user's calendar.
type Statistics struct {
	TotalEvents        int64                      `json:"total_events"`
	ByType             map[models.EventType]int64 `json:"by_type"`
	Weekly             []Bucket                   `json:"weekly"`
	Monthly            []Bucket                   `json:"monthly"`
	UpcomingUrgent     int64                      `json:"upcoming_urgent"`
	CompletedDeadlines int64                      `json:"completed_deadlines"`
	PendingDeadlines   int64                      `json:"pending_deadlines"`
}

type StatisticsService struct {
	stats repository.StatisticsRepository
	cache *cache.Store
	flags *featureflags.Manager
	loc   *time.Location
	now   Clock
}

func NewStatisticsService(d Deps) *StatisticsService {
	return &StatisticsService{
		stats: d.Repos.Stats,
		cache: d.Cache,
		flags: d.Flags,
		loc:   d.location(),
		now:   d.clock(),
	}
}

// Summary builds the dashboard. With statistics_cache on, results are kept
// for a short while and dropped whenever the user's events change.
func (s *StatisticsService) Summary(ctx context.Context, userID uint) (*Statistics, error) {
	if s.flags == nil || !s.flags.Enabled(featureflags.StatisticsCache, userID) {
		return s.compute(ctx, userID)
	}
	var out Statistics
	err := s.cache.CacheAside(ctx, "statistics", cache.StatisticsKey(userID), &out, cache.StatisticsTTL, func() error {
		st, err := s.compute(ctx, userID)
		if err != nil {
			return err
		}
		out = *st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StatisticsService) compute(ctx context.Context, userID uint) (*Statistics, error) {
	now := s.now().In(s.loc)

	byType, err := s.stats.CountByType(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Statistics{ByType: make(map[models.EventType]int64)}
	for _, t := range []models.EventType{
		models.EventTypeDeadline, models.EventTypeExam, models.EventTypeClass,
		models.EventTypeMeeting, models.EventTypeStudySession, models.EventTypeOther,
	} {
		out.ByType[t] = byType[t]
		out.TotalEvents += byType[t]
	}

	out.Weekly = weeklyBuckets(now)
	out.Monthly = monthlyBuckets(now)
	since := out.Weekly[0].Start
	if out.Monthly[0].Start.Before(since) {
		since = out.Monthly[0].Start
	}
	starts, err := s.stats.StartTimesSince(ctx, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	for _, st := range starts {
		fill(out.Weekly, st, now)
		fillMonth(out.Monthly, st.In(s.loc))
	}

	out.UpcomingUrgent, err = s.stats.CountStarting(ctx, userID,
		[]models.EventType{models.EventTypeDeadline, models.EventTypeExam}, now.UTC(), now.Add(soonWindow).UTC())
	if err != nil {
		return nil, err
	}
	out.CompletedDeadlines, out.PendingDeadlines, err = s.stats.DeadlineCompletion(ctx, userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// weeklyBuckets are rolling 7-day windows ending at now, oldest first.
func weeklyBuckets(now time.Time) []Bucket {
	out := make([]Bucket, statsWeeks)
	for i := range out {
		start := now.Add(-time.Duration(statsWeeks-i) * 7 * 24 * time.Hour)
		out[i] = Bucket{Label: start.Format("02 Jan"), Start: start}
	}
	return out
}

// monthlyBuckets are calendar months up to and including now's, oldest first.
func monthlyBuckets(now time.Time) []Bucket {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]Bucket, statsMonths)
	for i := range out {
		start := first.AddDate(0, -(statsMonths - 1 - i), 0)
		out[i] = Bucket{Label: start.Format("Jan 2006"), Start: start}
	}
	return out
}

func fill(buckets []Bucket, t, now time.Time) {
	for i := range buckets {
		end := now
		if i+1 < len(buckets) {
			end = buckets[i+1].Start
		}
		if !t.Before(buckets[i].Start) && t.Before(end) {
			buckets[i].Count++
			return
		}
	}
}

func fillMonth(buckets []Bucket, t time.Time) {
	for i := range buckets {
		b := buckets[i].Start
		if t.Year() == b.Year() && t.Month() == b.Month() {
			buckets[i].Count++
			return
		}
	}
}
