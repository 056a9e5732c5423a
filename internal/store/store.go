// Package store defines the persistence contract used by the reservation
// engine and the web layer. Implementations live in subpackages.
package store

import (
	"context"
	"errors"

	"parkalot/internal/model"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record conflict")
	// ErrInvalidInput is returned when the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input parameters")
)

// ReservationFilter narrows ListReservations. Zero values mean "no bound".
type ReservationFilter struct {
	UserID int64
	// StartAfter and StartBefore are exclusive bounds on StartTime.
	StartAfter  int64
	StartBefore int64
	Statuses    []model.Status
}

// Match reports whether r passes the filter.
func (f ReservationFilter) Match(r *model.Reservation) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.StartAfter != 0 && r.StartTime <= f.StartAfter {
		return false
	}
	if f.StartBefore != 0 && r.StartTime >= f.StartBefore {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

// Store connects the application to its backing storage.
type Store interface {
	// CreateUser inserts u and sets its ID. Duplicate emails yield ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByFeedToken(ctx context.Context, token string) (*model.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)

	// CreateReservation inserts r, setting its ID and DateAdded.
	CreateReservation(ctx context.Context, r *model.Reservation) error
	// UpdateReservation writes every mutable column of r. DateAdded is kept.
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	// ListReservations returns matches ordered by StartTime ascending.
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	CountReservations(ctx context.Context, userID int64) (int64, error)
	// NextInChain returns the reservation whose PreviousID is id.
	NextInChain(ctx context.Context, id int64) (*model.Reservation, error)
	// CompleteEnded marks active reservations with an effective end at or
	// before now as completed and returns how many changed.
	CompleteEnded(ctx context.Context, now int64) (int64, error)

	// WithinTx runs fn against a transactional view of the store. If fn
	// returns an error, none of its writes are kept.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
