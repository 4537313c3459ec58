package scheduler

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"timeout/internal/models"
)

// ICSProductID identifies exported calendars.
const ICSProductID = "-//Timeout//Student Calendar//EN"

// ExportICS renders events as an RFC 5545 calendar. Recurring events carry
// an RRULE instead of expanded copies; now stamps DTSTAMP. All-day dates and
// monthly rules are evaluated in loc.
func ExportICS(events []models.Event, host string, loc *time.Location, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ICSProductID)
	cal.SetName("Timeout")

	for i := range events {
		ev := &events[i]
		vevent := cal.AddEvent(fmt.Sprintf("event-%d@%s", ev.ID, host))
		vevent.SetDtStampTime(now.UTC())
		vevent.SetCreatedTime(ev.CreatedAt.UTC())
		vevent.SetModifiedAt(ev.UpdatedAt.UTC())
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		vevent.AddCategory(string(ev.EventType))

		if ev.IsAllDay {
			vevent.SetAllDayStartAt(ev.StartDatetime.In(loc))
			// DTEND is exclusive for all-day events.
			vevent.SetAllDayEndAt(startOfDay(ev.EndDatetime.In(loc)).AddDate(0, 0, 1))
		} else {
			vevent.SetStartAt(ev.StartDatetime.UTC())
			vevent.SetEndAt(ev.EndDatetime.UTC())
		}

		if ev.Visibility == models.VisibilityPublic {
			vevent.SetClass(ics.ClassificationPublic)
		} else {
			vevent.SetClass(ics.ClassificationPrivate)
		}

		switch {
		case ev.Status == models.EventStatusCancelled:
			vevent.SetStatus(ics.ObjectStatusCancelled)
		case ev.IsDeadline() && ev.IsCompleted:
			vevent.SetStatus(ics.ObjectStatusCompleted)
		default:
			vevent.SetStatus(ics.ObjectStatusConfirmed)
		}

		if ev.IsRecurring() {
			if rule, err := NewRecurrenceRule(ev.Recurrence, ev.StartDatetime.In(loc), time.Time{}); err == nil {
				vevent.AddRrule(rule.OrigOptions.RRuleString())
			}
		}
	}

	return cal.Serialize()
}
