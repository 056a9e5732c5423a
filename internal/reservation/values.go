package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Timestamp is a time field as submitted: either an absolute unix time or
// text still to be parsed.
type Timestamp struct {
	Unix mo.Option[int64]
	Text string
}

// At wraps an absolute unix time.
func At(unix int64) Timestamp {
	return Timestamp{Unix: mo.Some(unix)}
}

// Text wraps an unparsed date/time string.
func Text(s string) Timestamp {
	return Timestamp{Text: s}
}

// IsZero reports whether nothing was submitted.
func (t Timestamp) IsZero() bool {
	return !t.Unix.IsPresent() && strings.TrimSpace(t.Text) == ""
}

// TimeOfDay is the hour/minute/meridian triple of the booking form. An empty
// Meridian means Hour is on a 24 hour clock.
type TimeOfDay struct {
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Meridian string `json:"meridian"`
}

// Input is the loosely typed submission for a reservation.
type Input struct {
	UserID int64

	// Date and Time combine into StartTime when both are set.
	Date string
	Time *TimeOfDay

	StartTime Timestamp
	EndTime   Timestamp
	// Duration in seconds, used when EndTime is absent.
	Duration mo.Option[int64]
	// Extension is a signed count of extension blocks.
	Extension mo.Option[int64]

	// Recurrence is the interval in seconds between chain members, as text.
	Recurrence    string
	EndRecurrence string
}

// Values are the canonical fields produced by Normalize.
type Values struct {
	UserID    int64
	StartTime mo.Option[int64]
	EndTime   mo.Option[int64]
	// Extension is the new accumulated extension in seconds.
	Extension mo.Option[int64]
}

// Normalizer turns Input into Values. Text is parsed in Location.
type Normalizer struct {
	Location *time.Location
}

// Normalize converts in to canonical values. currentExtension is the stored
// accumulator an extension delta is added to. Unparseable times are
// reported as CodeDate on their field.
func (n Normalizer) Normalize(in Input, currentExtension int64) (Values, FieldErrors) {
	errs := FieldErrors{}
	out := Values{UserID: in.UserID}

	start := in.StartTime
	if in.Date != "" && in.Time != nil {
		start = Text(combine(in.Date, *in.Time))
	}

	if !start.IsZero() {
		v, err := n.resolve(start)
		if err != nil {
			errs.Add(FieldStartTime, CodeDate)
		} else {
			out.StartTime = mo.Some(v)
		}
	}

	switch {
	case !in.EndTime.IsZero():
		v, err := n.resolve(in.EndTime)
		if err != nil {
			errs.Add(FieldEndTime, CodeDate)
		} else {
			out.EndTime = mo.Some(v)
		}
	case in.Duration.IsPresent() && out.StartTime.IsPresent():
		out.EndTime = mo.Some(out.StartTime.MustGet() + in.Duration.MustGet())
	}

	if count, ok := in.Extension.Get(); ok {
		out.Extension = mo.Some(count*ExtensionBlock + currentExtension)
	}

	return out, errs
}

func (n Normalizer) resolve(t Timestamp) (int64, error) {
	if v, ok := t.Unix.Get(); ok {
		return v, nil
	}
	parsed, err := ParseTime(t.Text, n.location())
	if err != nil {
		return 0, err
	}
	return parsed.Unix(), nil
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

func combine(date string, tod TimeOfDay) string {
	meridian := strings.ToLower(strings.TrimSpace(tod.Meridian))
	if meridian == "" {
		return fmt.Sprintf("%s %02d:%02d", strings.TrimSpace(date), tod.Hour, tod.Minute)
	}
	return fmt.Sprintf("%s %d:%02d%s", strings.TrimSpace(date), tod.Hour, tod.Minute, meridian)
}

// layouts accepted by ParseTime, tried in order.
var layouts = []string{
	"2006-01-02 3:04pm",
	"2006-01-02 3:04 pm",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102",
	"01/02/2006 3:04pm",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006 3:04pm",
	"Jan 2, 2006",
	"January 2, 2006",
}

// minUnixDigits is the shortest digit string read as unix seconds; shorter
// ones are compact dates such as 20240601.
const minUnixDigits = 9

// ParseTime parses s as a wall time in loc. RFC 3339 strings keep their own
// offset, and a string of nine or more digits is taken as unix seconds.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if len(s) >= minUnixDigits && isDigits(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse unix time %q: %w", s, err)
		}
		return time.Unix(v, 0).In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	lower := strings.ToLower(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, lower, loc); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
