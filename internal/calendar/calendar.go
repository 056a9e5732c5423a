// Package calendar lays out month grids of a user's reservations for the
// profile page.
package calendar

import (
	"strconv"
	"time"

	"parkalot/internal/model"
)

const (
	ClassEvent = "event"
	ClassToday = "today"

	// DayLayout formats the day segment of day list links.
	DayLayout = "2006-01-02"
)

// Day is one cell of a month grid. Cells padding the first and last week
// belong to the neighbouring months and have InMonth unset.
type Day struct {
	Date    time.Time
	InMonth bool
	// Class is ClassEvent, ClassToday or empty.
	Class string
	// Link points at the day list when the day has reservations.
	Link  string
	Count int
}

func (d Day) Number() int { return d.Date.Day() }

type Week [7]Day

type Month struct {
	Year     int
	Month    time.Month
	Weekdays []string
	Weeks    []Week
}

func (m Month) Title() string {
	return m.Month.String() + " " + strconv.Itoa(m.Year)
}

// Options control how grids are built.
type Options struct {
	WeekStart time.Weekday
	Location  *time.Location
	// Now decides which day is today and which reservations are upcoming.
	Now time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// DayLink is the day list URL for day.
func DayLink(day time.Time) string {
	return "/reservation/list/" + day.Format(DayLayout)
}

// Months builds n consecutive grids starting at the month containing
// opts.Now.
func Months(n int, reservations []model.Reservation, opts Options) []Month {
	loc := opts.location()
	now := opts.Now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	out := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		out = append(out, Build(m.Year(), m.Month(), reservations, opts))
	}
	return out
}

// Build lays out one month. Days with active reservations starting after
// opts.Now are marked ClassEvent and link to their day list; today is
// marked ClassToday.
func Build(year int, month time.Month, reservations []model.Reservation, opts Options) Month {
	loc := opts.location()
	now := opts.Now.In(loc)

	counts := make(map[string]int)
	for i := range reservations {
		r := &reservations[i]
		if !r.Active() || r.StartTime <= opts.Now.Unix() {
			continue
		}
		counts[r.Start(loc).Format(DayLayout)]++
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) - int(opts.WeekStart) + 7) % 7
	cursor := first.AddDate(0, 0, -offset)

	m := Month{Year: year, Month: month, Weekdays: weekdayNames(opts.WeekStart)}
	today := now.Format(DayLayout)
	for {
		var w Week
		for i := range w {
			key := cursor.Format(DayLayout)
			d := Day{Date: cursor, InMonth: cursor.Month() == month}
			if d.InMonth {
				if n := counts[key]; n > 0 {
					d.Count = n
					d.Class = ClassEvent
					d.Link = DayLink(cursor)
				}
				if key == today {
					d.Class = ClassToday
				}
			}
			w[i] = d
			cursor = cursor.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, w)
		if cursor.Month() != month {
			break
		}
	}
	return m
}

func weekdayNames(start time.Weekday) []string {
	names := make([]string, 7)
	for i := range names {
		names[i] = time.Weekday((int(start) + i) % 7).String()[:3]
	}
	return names
}
