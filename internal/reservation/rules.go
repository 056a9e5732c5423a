// Package reservation holds the reservation validity rules, the input
// normalizer, the recurrence expander and the Service that ties them to a
// store.
package reservation

import (
	"sort"
	"strings"

	"github.com/samber/mo"
)

const (
	// TimeBlock is the granularity every start and end must align to.
	TimeBlock int64 = 1800
	// MinLeadTime is the minimum gap between now and start_time when creating.
	MinLeadTime int64 = 1800
	// MaxLeadTime is the maximum gap between now and start_time (12 weeks).
	MaxLeadTime int64 = 7257600
	// MinLength is the minimum reservation length.
	MinLength int64 = 1800
	// MinTimeBeforeEnd is the minimum gap between now and end_time when updating.
	MinTimeBeforeEnd int64 = 1800
	// ExtensionBlock is the size of one extension step.
	ExtensionBlock int64 = 1800
	// MaxRecurrences caps the members generated for one chain.
	MaxRecurrences = 28
)

// Error codes reported per field.
const (
	CodeNotEmpty             = "not_empty"
	CodeOnHalfHour           = "on_half_hour"
	CodeMinReservationLength = "min_reservation_length"
	CodeMinTimeBeforeStart   = "min_time_before_start"
	CodeMaxTimeBeforeStart   = "max_time_before_start"
	CodeMinTimeBeforeEnd     = "min_time_before_end"
	CodeDigit                = "digit"
	CodeDate                 = "date"
	CodeExists               = "exists"
)

// Field names used as FieldErrors keys.
const (
	FieldUserID        = "user_id"
	FieldStartTime     = "start_time"
	FieldEndTime       = "end_time"
	FieldExtension     = "extension"
	FieldRecurrence    = "recurrence"
	FieldEndRecurrence = "end_recurrence"
)

// MinSpan reports whether b is at least gap seconds after a.
func MinSpan(a, b, gap int64) bool {
	return b-a >= gap
}

// MaxSpan reports whether b is at most gap seconds after a.
func MaxSpan(a, b, gap int64) bool {
	return b-a <= gap
}

// OnHalfHour reports whether t falls exactly on a half hour boundary.
func OnHalfHour(t int64) bool {
	return t%TimeBlock == 0
}

// FieldErrors maps a field name to the codes of every rule it failed.
type FieldErrors map[string][]string

// Add records code for field, ignoring duplicates.
func (e FieldErrors) Add(field, code string) {
	for _, c := range e[field] {
		if c == code {
			return
		}
	}
	e[field] = append(e[field], code)
}

// Has reports whether field failed with code.
func (e FieldErrors) Has(field, code string) bool {
	for _, c := range e[field] {
		if c == code {
			return true
		}
	}
	return false
}

// Merge copies other into e, prefixing each field name.
func (e FieldErrors) Merge(prefix string, other FieldErrors) {
	for field, codes := range other {
		for _, code := range codes {
			e.Add(prefix+field, code)
		}
	}
}

// Err returns e as an error, or nil when there is nothing to report.
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("invalid reservation: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(e[f], ","))
	}
	return b.String()
}

// Subject is the view of a reservation the rules inspect. EndTime is the
// effective end (booked end plus extension).
type Subject struct {
	UserID    int64
	UserKnown bool
	StartTime mo.Option[int64]
	EndTime   mo.Option[int64]
}

// Check is a single named predicate. now is the current unix time.
type Check struct {
	Code string
	OK   func(s Subject, now int64) bool
}

// FieldRules is the ordered rule list for one field. When Present fails the
// field gets not_empty and its checks are skipped.
type FieldRules struct {
	Field   string
	Present func(s Subject) bool
	Checks  []Check
}

// Operation selects a validation plan.
type Operation int

const (
	OpCreate Operation = iota
	OpUpdate
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Plan is the fixed validation pipeline for one operation.
type Plan struct {
	Op     Operation
	Fields []FieldRules
}

var (
	hasUser  = func(s Subject) bool { return s.UserID != 0 }
	hasStart = func(s Subject) bool { return s.StartTime.IsPresent() }
	hasEnd   = func(s Subject) bool { return s.EndTime.IsPresent() }

	userExists = Check{CodeExists, func(s Subject, _ int64) bool {
		return s.UserKnown
	}}
	startOnHalfHour = Check{CodeOnHalfHour, func(s Subject, _ int64) bool {
		return OnHalfHour(s.StartTime.OrEmpty())
	}}
	endOnHalfHour = Check{CodeOnHalfHour, func(s Subject, _ int64) bool {
		return OnHalfHour(s.EndTime.OrEmpty())
	}}
	minReservationLength = Check{CodeMinReservationLength, func(s Subject, _ int64) bool {
		start, ok := s.StartTime.Get()
		if !ok {
			// start_time reports its own not_empty.
			return true
		}
		return MinSpan(start, s.EndTime.OrEmpty(), MinLength)
	}}
	minTimeBeforeStart = Check{CodeMinTimeBeforeStart, func(s Subject, now int64) bool {
		return MinSpan(now, s.StartTime.OrEmpty(), MinLeadTime)
	}}
	maxTimeBeforeStart = Check{CodeMaxTimeBeforeStart, func(s Subject, now int64) bool {
		return MaxSpan(now, s.StartTime.OrEmpty(), MaxLeadTime)
	}}
	minTimeBeforeEnd = Check{CodeMinTimeBeforeEnd, func(s Subject, now int64) bool {
		return MinSpan(now, s.EndTime.OrEmpty(), MinTimeBeforeEnd)
	}}
)

// baseRules apply to every operation.
var baseRules = []FieldRules{
	{Field: FieldUserID, Present: hasUser, Checks: []Check{userExists}},
	{Field: FieldStartTime, Present: hasStart, Checks: []Check{startOnHalfHour}},
	{Field: FieldEndTime, Present: hasEnd, Checks: []Check{minReservationLength, endOnHalfHour}},
}

// extraRules are appended to the base rules of a field per operation.
var extraRules = map[Operation]map[string][]Check{
	OpCreate: {FieldStartTime: {minTimeBeforeStart, maxTimeBeforeStart}},
	OpUpdate: {FieldEndTime: {minTimeBeforeEnd}},
}

var plans = map[Operation]Plan{
	OpCreate: compose(OpCreate),
	OpUpdate: compose(OpUpdate),
}

func compose(op Operation) Plan {
	p := Plan{Op: op, Fields: make([]FieldRules, 0, len(baseRules))}
	for _, fr := range baseRules {
		checks := append([]Check(nil), fr.Checks...)
		checks = append(checks, extraRules[op][fr.Field]...)
		p.Fields = append(p.Fields, FieldRules{Field: fr.Field, Present: fr.Present, Checks: checks})
	}
	return p
}

// PlanFor returns the validation plan for op.
func PlanFor(op Operation) Plan {
	return plans[op]
}

// Validate runs the plan and returns every failure.
func (p Plan) Validate(s Subject, now int64) FieldErrors {
	errs := FieldErrors{}
	p.ValidateInto(errs, s, now)
	return errs
}

// ValidateInto runs the plan, adding failures to errs. Fields that already
// carry an error in errs are skipped.
func (p Plan) ValidateInto(errs FieldErrors, s Subject, now int64) {
	for _, fr := range p.Fields {
		if len(errs[fr.Field]) > 0 {
			continue
		}
		if !fr.Present(s) {
			errs.Add(fr.Field, CodeNotEmpty)
			continue
		}
		for _, c := range fr.Checks {
			if !c.OK(s, now) {
				errs.Add(fr.Field, c.Code)
			}
		}
	}
}
