// Package scheduler holds the calendar rules that do not touch storage: event
// validation, recurrence expansion, month grids and deadline urgency.
//
// Every function here is pure. Callers pass the current instant explicitly.
package scheduler

import (
	"fmt"
	"sort"
	"time"

	"timeout/internal/models"
)

// ConflictInfo identifies the event a candidate collides with.
type ConflictInfo struct {
	EventID uint      `json:"event_id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start_datetime"`
	End     time.Time `json:"end_datetime"`
}

// overlapExempt lists event types that may overlap anything.
var overlapExempt = map[models.EventType]bool{
	models.EventTypeDeadline: true,
}

// IsOverlapExempt reports whether events of type t skip conflict detection.
func IsOverlapExempt(t models.EventType) bool {
	return overlapExempt[t]
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) strictly overlap.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ValidateEvent checks a candidate against the creator's existing events.
//
// It returns an INVALID_RANGE AppError when start is not before end, and a
// CONFLICT AppError carrying ConflictInfo for the earliest overlapping event
// (by start, then id). Existing events owned by someone else, the candidate's
// own row and cancelled events are ignored.
func ValidateEvent(candidate *models.Event, existing []models.Event) error {
	if !candidate.StartDatetime.Before(candidate.EndDatetime) {
		return models.NewInvalidRangeError("End time must be after start time")
	}

	if IsOverlapExempt(candidate.EventType) ||
		candidate.AllowConflict ||
		candidate.Status == models.EventStatusCancelled {
		return nil
	}

	ordered := make([]models.Event, len(existing))
	copy(ordered, existing)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].StartDatetime.Equal(ordered[j].StartDatetime) {
			return ordered[i].StartDatetime.Before(ordered[j].StartDatetime)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for i := range ordered {
		other := &ordered[i]
		if other.CreatorID != candidate.CreatorID {
			continue
		}
		if candidate.ID != 0 && other.ID == candidate.ID {
			continue
		}
		if other.Status == models.EventStatusCancelled {
			continue
		}
		if !Overlaps(other.StartDatetime, other.EndDatetime, candidate.StartDatetime, candidate.EndDatetime) {
			continue
		}
		return models.NewConflictError(conflictMessage(other, candidate.StartDatetime.Location()), ConflictInfo{
			EventID: other.ID,
			Title:   other.Title,
			Start:   other.StartDatetime,
			End:     other.EndDatetime,
		})
	}
	return nil
}

func conflictMessage(other *models.Event, loc *time.Location) string {
	start := other.StartDatetime.In(loc)
	end := other.EndDatetime.In(loc)
	if sameDate(start, end) {
		return fmt.Sprintf("Conflicts with %q (%s %s-%s)",
			other.Title, start.Format("Mon 02 Jan"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("Conflicts with %q (%s - %s)",
		other.Title, start.Format("Mon 02 Jan 15:04"), end.Format("Mon 02 Jan 15:04"))
}
