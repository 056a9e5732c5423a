package model

import (
	"time"

	"github.com/samber/mo"
)

// Status is the lifecycle state of a reservation. Reservations are never
// deleted; cancelling or finishing one only changes its status.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Reservation is a booked parking slot. Times are unix seconds.
type Reservation struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	StartTime int64 `json:"start_time"`
	// EndTime is the end as originally booked. Extensions do not rewrite it.
	EndTime int64 `json:"end_time"`
	// Extension is the accumulated adjustment to EndTime in seconds, always
	// a multiple of the extension block.
	Extension int64 `json:"extension"`

	Recurring bool `json:"recurring"`
	// PreviousID links a recurrence chain member to the member created
	// before it (the base reservation for the first member).
	PreviousID mo.Option[int64] `json:"previous_id"`

	Status    Status `json:"status"`
	DateAdded int64  `json:"date_added"`
}

// EffectiveEnd is the end time after extensions.
func (r *Reservation) EffectiveEnd() int64 {
	return r.EndTime + r.Extension
}

// Duration is the effective length of the reservation.
func (r *Reservation) Duration() time.Duration {
	return time.Duration(r.EffectiveEnd()-r.StartTime) * time.Second
}

// Start returns StartTime as a time in loc.
func (r *Reservation) Start(loc *time.Location) time.Time {
	return time.Unix(r.StartTime, 0).In(loc)
}

// End returns EffectiveEnd as a time in loc.
func (r *Reservation) End(loc *time.Location) time.Time {
	return time.Unix(r.EffectiveEnd(), 0).In(loc)
}

func (r *Reservation) Active() bool {
	return r.Status == StatusActive
}

// User is an account that owns reservations.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PasswordHash string `json:"-"`
	// FeedToken authorizes the read-only iCalendar feed for this user.
	FeedToken        string `json:"-"`
	RegistrationDate int64  `json:"registration_date"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
