package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// Recurrence describes how a base reservation repeats: every Interval
// seconds, for members starting strictly before Until.
type Recurrence struct {
	Interval int64
	Until    int64
}

// Slot is the time range of one generated chain member.
type Slot struct {
	StartTime int64
	EndTime   int64
}

// ParseRecurrence reads the recurrence fields of in. An empty or zero
// interval means the reservation does not repeat. When an interval is set,
// end_recurrence is required.
func ParseRecurrence(in Input, loc *time.Location) (mo.Option[Recurrence], FieldErrors) {
	errs := FieldErrors{}
	raw := strings.TrimSpace(in.Recurrence)
	if raw == "" || raw == "0" {
		return mo.None[Recurrence](), errs
	}

	interval, err := strconv.ParseInt(raw, 10, 64)
	if !isDigits(raw) || err != nil || interval <= 0 {
		errs.Add(FieldRecurrence, CodeDigit)
	}

	var until int64
	if strings.TrimSpace(in.EndRecurrence) == "" {
		errs.Add(FieldEndRecurrence, CodeNotEmpty)
	} else if t, perr := ParseTime(in.EndRecurrence, loc); perr != nil {
		errs.Add(FieldEndRecurrence, CodeDate)
	} else {
		until = t.Unix()
	}

	if len(errs) > 0 {
		return mo.None[Recurrence](), errs
	}
	return mo.Some(Recurrence{Interval: interval, Until: until}), errs
}

// Expand returns the follow-on slots for a reservation spanning
// [start, end). At most MaxRecurrences slots are produced, and generation
// stops at the first candidate starting at or after rec.Until.
func Expand(start, end int64, rec Recurrence) ([]Slot, error) {
	if rec.Interval <= 0 {
		return nil, fmt.Errorf("recurrence interval must be positive, got %d", rec.Interval)
	}

	// Intervals longer than the lead time put every member out of range and
	// may not fit the rule's int, so step them directly.
	if rec.Interval > MaxLeadTime {
		return stepSlots(start, end, rec, nil), nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.SECONDLY,
		Interval: int(rec.Interval),
		// The first occurrence is the base reservation itself.
		Count:   MaxRecurrences + 1,
		Dtstart: time.Unix(start, 0).UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}

	occurrences := rule.All()
	slots := make([]Slot, 0, len(occurrences))
	for i, occ := range occurrences {
		if i == 0 {
			continue
		}
		candidate := occ.Unix()
		if candidate >= rec.Until {
			return slots, nil
		}
		shift := candidate - start
		slots = append(slots, Slot{StartTime: candidate, EndTime: end + shift})
	}
	// The rule stops at the end of year 9999; carry on past it.
	return stepSlots(start, end, rec, slots), nil
}

// stepSlots appends slots after the last one in slots (or after start) by
// adding rec.Interval, stopping before any timestamp overflows.
func stepSlots(start, end int64, rec Recurrence, slots []Slot) []Slot {
	candidate := start
	if len(slots) > 0 {
		candidate = slots[len(slots)-1].StartTime
	}
	for len(slots) < MaxRecurrences {
		next := candidate + rec.Interval
		if next < candidate || next >= rec.Until {
			break
		}
		candidate = next
		stop := end + (candidate - start)
		if stop < candidate {
			break
		}
		slots = append(slots, Slot{StartTime: candidate, EndTime: stop})
	}
	return slots
}
