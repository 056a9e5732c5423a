package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/mo"

	appLog "parkalot/internal/log"
	"parkalot/internal/metrics"
	"parkalot/internal/model"
	"parkalot/internal/store"
)

var (
	// ErrForbidden is returned when a user acts on someone else's reservation.
	ErrForbidden = errors.New("reservation belongs to another user")
	// ErrNotActive is returned when editing a cancelled or completed reservation.
	ErrNotActive = errors.New("reservation is no longer active")
	// ErrNotCancellable is returned when the start is too close to cancel.
	ErrNotCancellable = errors.New("reservation starts too soon to cancel")
)

// Service creates, edits and cancels reservations against a store.
type Service struct {
	store store.Store
	norm  Normalizer
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service that parses submitted times in loc.
func NewService(st store.Store, loc *time.Location, opts ...Option) *Service {
	s := &Service{store: st, norm: Normalizer{Location: loc}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone submitted times are interpreted in.
func (s *Service) Location() *time.Location {
	return s.norm.location()
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// CreateResult is the outcome of Create. Chain holds the generated members
// in order, empty for a one-time reservation.
type CreateResult struct {
	Base  model.Reservation
	Chain []model.Reservation
}

// Create validates in and persists it, expanding the recurrence when one
// is requested. The base and every chain member are written in a single
// transaction: if any member fails validation nothing is stored, and the
// member's errors are reported under "recurrence.<n>.<field>".
func (s *Service) Create(ctx context.Context, in Input) (*CreateResult, error) {
	now := s.now().Unix()

	vals, errs := s.norm.Normalize(in, 0)
	rec, recErrs := ParseRecurrence(in, s.norm.location())
	errs.Merge("", recErrs)

	base := model.Reservation{
		UserID:    vals.UserID,
		StartTime: vals.StartTime.OrEmpty(),
		EndTime:   vals.EndTime.OrEmpty(),
	}
	subject := Subject{UserID: vals.UserID, StartTime: vals.StartTime, EndTime: vals.EndTime}

	result := &CreateResult{}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := s.createOne(ctx, tx, subject, &base, errs, now); err != nil {
			return err
		}
		r, ok := rec.Get()
		if !ok {
			return nil
		}
		chain, err := s.createChain(ctx, tx, &base, r, now)
		if err != nil {
			return err
		}
		result.Chain = chain
		return nil
	})
	if err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			countFailures(OpCreate, fe)
		}
		return nil, err
	}

	result.Base = base
	if len(result.Chain) == 0 {
		metrics.ReservationsCreated.WithLabelValues("one_time").Inc()
	} else {
		metrics.ReservationsCreated.WithLabelValues("recurring_base").Inc()
		metrics.ReservationsCreated.WithLabelValues("chain_member").Add(float64(len(result.Chain)))
	}
	appLog.Info("reservation created",
		"id", base.ID,
		"user_id", base.UserID,
		"start_time", base.StartTime,
		"end_time", base.EndTime,
		"chain", len(result.Chain),
	)
	return result, nil
}

// createOne validates subject with the create plan, adding to errs, and
// persists r through st when everything passes.
func (s *Service) createOne(ctx context.Context, st store.Store, subject Subject, r *model.Reservation, errs FieldErrors, now int64) error {
	if subject.UserID != 0 {
		known, err := st.UserExists(ctx, subject.UserID)
		if err != nil {
			return fmt.Errorf("look up user %d: %w", subject.UserID, err)
		}
		subject.UserKnown = known
	}

	PlanFor(OpCreate).ValidateInto(errs, subject, now)
	if err := errs.Err(); err != nil {
		return err
	}
	if err := st.CreateReservation(ctx, r); err != nil {
		return fmt.Errorf("persist reservation: %w", err)
	}
	return nil
}

// createChain generates and persists the members following base, then marks
// base as recurring. Members go through createOne and never recurse.
func (s *Service) createChain(ctx context.Context, st store.Store, base *model.Reservation, rec Recurrence, now int64) ([]model.Reservation, error) {
	slots, err := Expand(base.StartTime, base.EndTime, rec)
	if err != nil {
		return nil, err
	}

	chain := make([]model.Reservation, 0, len(slots))
	previous := base.ID
	for i, slot := range slots {
		member := model.Reservation{
			UserID:     base.UserID,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			Recurring:  true,
			PreviousID: mo.Some(previous),
		}
		subject := Subject{
			UserID:    member.UserID,
			StartTime: mo.Some(member.StartTime),
			EndTime:   mo.Some(member.EndTime),
		}

		memberErrs := FieldErrors{}
		if err := s.createOne(ctx, st, subject, &member, memberErrs, now); err != nil {
			if len(memberErrs) > 0 {
				out := FieldErrors{}
				out.Merge(FieldRecurrence+"."+strconv.Itoa(i+1)+".", memberErrs)
				return nil, out
			}
			return nil, err
		}
		chain = append(chain, member)
		previous = member.ID
	}

	base.Recurring = true
	if err := st.UpdateReservation(ctx, base); err != nil {
		return nil, fmt.Errorf("mark base %d recurring: %w", base.ID, err)
	}
	return chain, nil
}

// Update applies the extension in in to reservation id. Only the extension
// field is read; everything else about a reservation is fixed once booked.
func (s *Service) Update(ctx context.Context, userID, id int64, in Input) (*model.Reservation, error) {
	now := s.now().Unix()

	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !r.Active() {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotActive)
	}

	vals, errs := s.norm.Normalize(Input{Extension: in.Extension}, r.Extension)
	ext, ok := vals.Extension.Get()
	if !ok {
		errs.Add(FieldExtension, CodeNotEmpty)
		countFailures(OpUpdate, errs)
		return nil, errs
	}

	previous := r.Extension
	r.Extension = ext
	known, err := s.store.UserExists(ctx, r.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up user %d: %w", r.UserID, err)
	}
	subject := Subject{
		UserID:    r.UserID,
		UserKnown: known,
		StartTime: mo.Some(r.StartTime),
		EndTime:   mo.Some(r.EffectiveEnd()),
	}
	PlanFor(OpUpdate).ValidateInto(errs, subject, now)
	if len(errs) > 0 {
		countFailures(OpUpdate, errs)
		return nil, errs
	}

	if err := s.store.UpdateReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("update reservation %d: %w", id, err)
	}

	direction := "increase"
	if ext < previous {
		direction = "decrease"
	}
	metrics.Extensions.WithLabelValues(direction).Inc()
	appLog.Info("reservation extended", "id", r.ID, "extension", r.Extension, "effective_end", r.EffectiveEnd())
	return r, nil
}

// Extend is Update with a block count.
func (s *Service) Extend(ctx context.Context, userID, id, blocks int64) (*model.Reservation, error) {
	return s.Update(ctx, userID, id, Input{Extension: mo.Some(blocks)})
}

// CanCancel reports whether r may still be cancelled at now.
func CanCancel(r *model.Reservation, now time.Time) bool {
	return r.Active() && MinSpan(now.Unix(), r.StartTime, MinLeadTime)
}

// Cancel marks reservation id cancelled. With chain set, every later
// active member of its recurrence chain is cancelled too.
func (s *Service) Cancel(ctx context.Context, userID, id int64, chain bool) ([]model.Reservation, error) {
	now := s.now()

	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !r.Active() {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotActive)
	}
	if !CanCancel(r, now) {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotCancellable)
	}

	var cancelled []model.Reservation
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		cancelled = cancelled[:0]
		current := r
		for {
			if CanCancel(current, now) {
				current.Status = model.StatusCancelled
				if err := tx.UpdateReservation(ctx, current); err != nil {
					return fmt.Errorf("cancel reservation %d: %w", current.ID, err)
				}
				cancelled = append(cancelled, *current)
			}
			if !chain {
				return nil
			}
			next, err := tx.NextInChain(ctx, current.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			current = next
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.Cancellations.Add(float64(len(cancelled)))
	appLog.Info("reservation cancelled", "id", id, "user_id", userID, "count", len(cancelled), "chain", chain)
	return cancelled, nil
}

// Get returns reservation id if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, id int64) (*model.Reservation, error) {
	return s.owned(ctx, userID, id)
}

// List returns the reservations of userID starting in [from, to).
func (s *Service) List(ctx context.Context, userID int64, from, to time.Time) ([]model.Reservation, error) {
	f := store.ReservationFilter{UserID: userID}
	if !from.IsZero() {
		f.StartAfter = from.Unix() - 1
	}
	if !to.IsZero() {
		f.StartBefore = to.Unix()
	}
	return s.store.ListReservations(ctx, f)
}

// Chain returns the whole recurrence chain containing reservation id, from
// the base reservation onwards. A one-time reservation is a chain of one.
func (s *Service) Chain(ctx context.Context, userID, id int64) ([]model.Reservation, error) {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	// Walk back to the base, bounded by the longest possible chain.
	for steps := 0; steps <= MaxRecurrences; steps++ {
		prev, ok := r.PreviousID.Get()
		if !ok {
			break
		}
		p, err := s.store.GetReservation(ctx, prev)
		if err != nil {
			return nil, fmt.Errorf("walk chain of %d: %w", id, err)
		}
		r = p
	}

	out := []model.Reservation{*r}
	for len(out) <= MaxRecurrences {
		next, err := s.store.NextInChain(ctx, r.ID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk chain of %d: %w", id, err)
		}
		out = append(out, *next)
		r = next
	}
	return out, nil
}

// CompleteEnded closes every active reservation whose effective end has
// passed.
func (s *Service) CompleteEnded(ctx context.Context) (int64, error) {
	n, err := s.store.CompleteEnded(ctx, s.now().Unix())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.Completed.Add(float64(n))
	}
	return n, nil
}

func (s *Service) owned(ctx context.Context, userID, id int64) (*model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrForbidden)
	}
	return r, nil
}

func countFailures(op Operation, errs FieldErrors) {
	for field, codes := range errs {
		for _, code := range codes {
			metrics.ValidationFailures.WithLabelValues(op.String(), field, code).Inc()
		}
	}
}
