package scheduler

import (
	"sort"
	"time"

	"timeout/internal/models"
)

// YearMonth names a calendar month.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time `json:"date"`
	InMonth bool      `json:"in_month"`
	IsToday bool      `json:"is_today"`
	Entries []Entry   `json:"entries"`
}

// MonthGrid is a Monday-first calendar page.
type MonthGrid struct {
	YearMonth
	MonthName   string    `json:"month_name"`
	Weeks       [][]Day   `json:"weeks"`
	Prev        YearMonth `json:"prev"`
	Next        YearMonth `json:"next"`
	Today       time.Time `json:"today"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// NormalizeMonth rolls month overflow into the adjacent year: month 0 is
// December of the previous year and month 13 is January of the next.
func NormalizeMonth(year, month int) YearMonth {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// MonthWindow returns the first and last visible dates of the grid for the
// month: the Monday on or before the 1st and the Sunday on or after the last day.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	ym := NormalizeMonth(year, month)
	first := time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	start := first.AddDate(0, 0, -mondayOffset(first.Weekday()))
	end := last.AddDate(0, 0, 6-mondayOffset(last.Weekday()))
	return start, end
}

// BuildMonthGrid lays events out on the grid for year/month. Dates are
// evaluated in today's location. Each day carries the stored events starting
// on it plus the projected occurrences of recurring events, ordered by start.
func BuildMonthGrid(events []models.Event, year, month int, today time.Time) MonthGrid {
	loc := today.Location()
	ym := NormalizeMonth(year, month)
	windowStart, windowEnd := MonthWindow(ym.Year, int(ym.Month), loc)
	todayDate := startOfDay(today)

	byDate := make(map[string][]Entry)
	for i := range events {
		ev := &events[i]
		startDay := startOfDay(ev.StartDatetime.In(loc))
		if !startDay.Before(windowStart) && !startDay.After(windowEnd) {
			byDate[dateKey(startDay)] = append(byDate[dateKey(startDay)], Literal(ev))
		}
		for entry := range ExpandOccurrences(ev, windowStart, windowEnd) {
			if entry.Kind != KindOccurrence {
				continue
			}
			key := dateKey(entry.Start)
			byDate[key] = append(byDate[key], entry)
		}
	}

	grid := MonthGrid{
		YearMonth:   ym,
		MonthName:   ym.Month.String(),
		Prev:        NormalizeMonth(ym.Year, int(ym.Month)-1),
		Next:        NormalizeMonth(ym.Year, int(ym.Month)+1),
		Today:       todayDate,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	var week []Day
	for day := windowStart; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
		entries := byDate[dateKey(day)]
		sortEntries(entries)
		week = append(week, Day{
			Date:    day,
			InMonth: day.Month() == ym.Month,
			IsToday: day.Equal(todayDate),
			Entries: entries,
		})
		if len(week) == 7 {
			grid.Weeks = append(grid.Weeks, week)
			week = nil
		}
	}
	return grid
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].Event.ID < entries[j].Event.ID
	})
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// mondayOffset is the number of days since the most recent Monday.
func mondayOffset(w time.Weekday) int {
	return (int(w) + 6) % 7
}
