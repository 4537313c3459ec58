package scheduler

import (
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"

	"timeout/internal/models"
)

// MaxOccurrencesPerEvent caps how many entries one event may contribute to a window.
const MaxOccurrencesPerEvent = 1000

// EntryKind tells a stored event apart from a projected repetition of it.
type EntryKind int

const (
	// KindLiteral is the stored event row itself.
	KindLiteral EntryKind = iota
	// KindOccurrence is a transient projection of a recurring event. It is never persisted.
	KindOccurrence
)

func (k EntryKind) String() string {
	if k == KindOccurrence {
		return "occurrence"
	}
	return "literal"
}

// MarshalText renders the kind as "literal" or "occurrence".
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Entry is one calendar appearance of an event. For KindLiteral Start and End
// equal the stored instants; for KindOccurrence they are the projected ones and
// Event still points at the base row (same id).
type Entry struct {
	Kind  EntryKind     `json:"kind"`
	Event *models.Event `json:"event"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
}

// Literal wraps a stored event as a calendar entry.
func Literal(ev *models.Event) Entry {
	return Entry{Kind: KindLiteral, Event: ev, Start: ev.StartDatetime, End: ev.EndDatetime}
}

// ExpandOccurrences yields the appearances of a recurring event whose date lies
// in [windowStart, windowEnd], both taken as calendar dates in windowStart's
// location. The base start date is yielded once, as KindLiteral; later dates
// are KindOccurrence and keep the original time of day. Non-recurring events
// yield nothing.
//
// The sequence is lazy and can be ranged over any number of times.
func ExpandOccurrences(ev *models.Event, windowStart, windowEnd time.Time) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if ev == nil || !ev.IsRecurring() {
			return
		}
		loc := windowStart.Location()
		first := startOfDay(windowStart)
		last := startOfDay(windowEnd.In(loc))
		if last.Before(first) {
			return
		}

		start := ev.StartDatetime.In(loc)
		end := ev.EndDatetime.In(loc)
		baseDay := startOfDay(start)
		spanDays := daysBetween(baseDay, startOfDay(end))

		rule, err := NewRecurrenceRule(ev.Recurrence, start, endOfDay(last))
		if err != nil {
			return
		}

		next := rule.Iterator()
		emitted := 0
		for emitted < MaxOccurrencesPerEvent {
			at, ok := next()
			if !ok {
				return
			}
			day := startOfDay(at)
			if day.After(last) {
				return
			}
			if day.Before(first) {
				continue
			}

			entry := Entry{
				Kind:  KindOccurrence,
				Event: ev,
				Start: withClock(day, start),
				End:   withClock(day.AddDate(0, 0, spanDays), end),
			}
			if day.Equal(baseDay) {
				entry = Literal(ev)
			}
			emitted++
			if !yield(entry) {
				return
			}
		}
	}
}

// NewRecurrenceRule builds the RFC 5545 rule for a recurrence kind. Monthly
// rules that start on the 29th or later pick the last existing day up to the
// start day, so Jan 31 repeats on Feb 28 (or 29) and Apr 30.
// A zero until leaves the rule unbounded.
func NewRecurrenceRule(kind models.Recurrence, dtstart, until time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart:  dtstart,
		Until:    until,
		Interval: 1,
		Wkst:     rrule.MO,
	}
	switch kind {
	case models.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case models.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
	case models.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = clampedMonthDay(dtstart.Day())
	default:
		return nil, fmt.Errorf("recurrence %q does not repeat", kind)
	}
	return rrule.NewRRule(opt)
}

// clampedMonthDay returns BYMONTHDAY/BYSETPOS values selecting the given
// day of month, or the month's last day when it is shorter.
func clampedMonthDay(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

func withClock(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), day.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
