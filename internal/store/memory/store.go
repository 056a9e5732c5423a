// memory based implementation for testing and development
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"parkalot/internal/model"
	"parkalot/internal/store"
)

// Store implements store.Store using in-memory maps.
type Store struct {
	mu           sync.RWMutex
	users        map[int64]*model.User
	reservations map[int64]*model.Reservation
	nextUserID   int64
	nextResID    int64

	// txMu serializes WithinTx calls. Writes made outside a transaction while
	// one is rolling back are lost with it.
	txMu sync.Mutex

	// Now stamps DateAdded and RegistrationDate. Defaults to time.Now.
	Now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:        make(map[int64]*model.User),
		reservations: make(map[int64]*model.Reservation),
		Now:          time.Now,
	}
}

// User operations

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %q: %w", u.Email, store.ErrConflict)
		}
	}

	s.nextUserID++
	u.ID = s.nextUserID
	if u.RegistrationDate == 0 {
		u.RegistrationDate = s.Now().Unix()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
}

func (s *Store) GetUserByFeedToken(_ context.Context, token string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token != "" {
		for _, u := range s.users {
			if u.FeedToken == token {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("feed token: %w", store.ErrNotFound)
}

func (s *Store) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]
	return ok, nil
}

// Reservation operations

func (s *Store) CreateReservation(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextResID++
	r.ID = s.nextResID
	r.DateAdded = s.Now().Unix()
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	cp := *r
	s.reservations[r.ID] = &cp
	return nil
}

func (s *Store) UpdateReservation(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reservations[r.ID]
	if !ok {
		return fmt.Errorf("reservation %d: %w", r.ID, store.ErrNotFound)
	}
	cp := *r
	cp.DateAdded = existing.DateAdded
	s.reservations[r.ID] = &cp
	return nil
}

func (s *Store) GetReservation(_ context.Context, id int64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListReservations(_ context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if f.Match(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime == out[j].StartTime {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *Store) CountReservations(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.reservations {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) NextInChain(_ context.Context, id int64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reservations {
		if prev, ok := r.PreviousID.Get(); ok && prev == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("successor of %d: %w", id, store.ErrNotFound)
}

func (s *Store) CompleteEnded(_ context.Context, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.reservations {
		if r.Status == model.StatusActive && r.EffectiveEnd() <= now {
			r.Status = model.StatusCompleted
			n++
		}
	}
	return n, nil
}

// WithinTx snapshots all records, runs fn and restores the snapshot if fn
// fails.
func (s *Store) WithinTx(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Close() error { return nil }

type snapshot struct {
	users        map[int64]model.User
	reservations map[int64]model.Reservation
	nextUserID   int64
	nextResID    int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		users:        make(map[int64]model.User, len(s.users)),
		reservations: make(map[int64]model.Reservation, len(s.reservations)),
		nextUserID:   s.nextUserID,
		nextResID:    s.nextResID,
	}
	for id, u := range s.users {
		snap.users[id] = *u
	}
	for id, r := range s.reservations {
		snap.reservations[id] = *r
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[int64]*model.User, len(snap.users))
	for id, u := range snap.users {
		u := u
		s.users[id] = &u
	}
	s.reservations = make(map[int64]*model.Reservation, len(snap.reservations))
	for id, r := range snap.reservations {
		r := r
		s.reservations[id] = &r
	}
	s.nextUserID = snap.nextUserID
	s.nextResID = snap.nextResID
}
