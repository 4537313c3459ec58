package scheduler

import (
	"fmt"
	"time"

	"timeout/internal/models"
)

// UrgencyStatus buckets a deadline by time remaining.
type UrgencyStatus string

const (
	UrgencyOverdue UrgencyStatus = "overdue"
	UrgencyUrgent  UrgencyStatus = "urgent"
	UrgencyNormal  UrgencyStatus = "normal"
)

// UrgentWindow is how close a deadline must be to count as urgent.
const UrgentWindow = 24 * time.Hour

// Urgency describes how pressing a deadline is at a given instant.
type Urgency struct {
	Status           UrgencyStatus `json:"status"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	RemainingDisplay string        `json:"remaining_display"`
	ElapsedDisplay   string        `json:"elapsed_display"`
}

// ClassifyUrgency compares the deadline's end with now: negative remaining time
// is overdue, up to and including 24h is urgent, anything later is normal.
func ClassifyUrgency(ev *models.Event, now time.Time) Urgency {
	remaining := ev.EndDatetime.Sub(now)

	status := UrgencyNormal
	switch {
	case remaining < 0:
		status = UrgencyOverdue
	case remaining <= UrgentWindow:
		status = UrgencyUrgent
	}

	return Urgency{
		Status:           status,
		Remaining:        remaining,
		RemainingSeconds: int64(remaining / time.Second),
		RemainingDisplay: FormatRemaining(remaining),
		ElapsedDisplay:   FormatElapsed(now.Sub(ev.CreatedAt)),
	}
}

// FormatRemaining renders time left (or overdue when negative) with its largest unit.
func FormatRemaining(d time.Duration) string {
	suffix := "left"
	if d < 0 {
		d = -d
		suffix = "overdue"
	}
	unit := largestUnit(d)
	if unit == "" {
		return "just now"
	}
	return unit + " " + suffix
}

// FormatElapsed renders how long ago something was added.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	unit := largestUnit(d)
	if unit == "" {
		return "Added just now"
	}
	return "Added " + unit + " ago"
}

func largestUnit(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	}
	return ""
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ProfileState says how a profile's headline event relates to now.
type ProfileState string

const (
	ProfileActive   ProfileState = "active"
	ProfileUpcoming ProfileState = "upcoming"
	ProfileRecent   ProfileState = "recent"
)

// ProfileWindow bounds "starting soon" and "just ended".
const ProfileWindow = 2 * time.Hour

// PickProfileEvent selects the event to headline on a profile: an ongoing
// one first, else the soonest starting within ProfileWindow, else the latest
// that ended within ProfileWindow. It returns nil when nothing qualifies.
func PickProfileEvent(events []models.Event, now time.Time) (*models.Event, ProfileState) {
	var upcoming, recent *models.Event
	for i := range events {
		ev := &events[i]
		switch {
		case ev.IsOngoing(now):
			return ev, ProfileActive
		case ev.StartDatetime.After(now) && !ev.StartDatetime.After(now.Add(ProfileWindow)):
			if upcoming == nil || ev.StartDatetime.Before(upcoming.StartDatetime) {
				upcoming = ev
			}
		case ev.EndDatetime.Before(now) && !ev.EndDatetime.Before(now.Add(-ProfileWindow)):
			if recent == nil || ev.EndDatetime.After(recent.EndDatetime) {
				recent = ev
			}
		}
	}
	if upcoming != nil {
		return upcoming, ProfileUpcoming
	}
	if recent != nil {
		return recent, ProfileRecent
	}
	return nil, ""
}
