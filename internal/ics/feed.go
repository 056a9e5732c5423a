// Package ics renders a user's reservations as an iCalendar feed and reads
// such feeds back.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"parkalot/internal/model"
)

const productID = "-//Park-a-Lot//Reservations//EN"

// FeedOptions controls BuildFeed.
type FeedOptions struct {
	// Location is advertised as the calendar's default zone.
	Location *time.Location
	// BaseURL prefixes the per-event edit links. Empty omits them.
	BaseURL string
	// Now stamps DTSTAMP.
	Now time.Time
}

// EventUID is the stable iCalendar UID of a reservation.
func EventUID(id int64) string {
	return fmt.Sprintf("reservation-%d@parkalot", id)
}

// BuildFeed serializes reservations as a PUBLISH calendar. Events span the
// effective time (extensions included). Cancelled reservations stay in the
// feed as CANCELLED so subscribed clients drop them.
func BuildFeed(u *model.User, reservations []model.Reservation, opts FeedOptions) string {
	cal := ical.NewCalendarFor("Park-a-Lot")
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Parking: " + u.FullName())
	if opts.Location != nil {
		cal.SetXWRTimezone(opts.Location.String())
	}

	stamp := opts.Now.UTC()
	if opts.Now.IsZero() {
		stamp = time.Now().UTC()
	}

	for i := range reservations {
		r := &reservations[i]
		ev := cal.AddEvent(EventUID(r.ID))
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(time.Unix(r.DateAdded, 0).UTC())
		ev.SetStartAt(time.Unix(r.StartTime, 0).UTC())
		ev.SetEndAt(time.Unix(r.EffectiveEnd(), 0).UTC())
		ev.SetSummary(summary(r))
		ev.SetDescription(description(r))
		ev.SetStatus(status(r.Status))
		if opts.BaseURL != "" {
			ev.SetURL(fmt.Sprintf("%s/reservation/edit/%d", strings.TrimRight(opts.BaseURL, "/"), r.ID))
		}
	}

	return cal.Serialize()
}

func summary(r *model.Reservation) string {
	if r.Recurring {
		return "Parking reservation (recurring)"
	}
	return "Parking reservation"
}

func description(r *model.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Duration: %s", FormatSpan(r.EffectiveEnd()-r.StartTime))
	if r.Extension != 0 {
		sign := "+"
		if r.Extension < 0 {
			sign = "-"
		}
		fmt.Fprintf(&b, ", adjusted %s%s", sign, FormatSpan(abs(r.Extension)))
	}
	return b.String()
}

func status(s model.Status) ical.ObjectStatus {
	if s == model.StatusCancelled {
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusConfirmed
}

// FormatSpan renders seconds as "Xh Ym".
func FormatSpan(seconds int64) string {
	return fmt.Sprintf("%dh %dm", seconds/3600, seconds%3600/60)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
