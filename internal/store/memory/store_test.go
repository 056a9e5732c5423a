package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkalot/internal/model"
	"parkalot/internal/store"
)

func newTestStore() *Store {
	s := New()
	s.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func TestUserOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	u := &model.User{Email: "ada@example.com", FirstName: "Ada", FeedToken: "tok"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, int64(1_700_000_000), u.RegistrationDate)

	err := s.CreateUser(ctx, &model.User{Email: "ADA@example.com"})
	assert.True(t, errors.Is(err, store.ErrConflict))

	got, err := s.GetUserByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.GetUserByFeedToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByFeedToken(ctx, "")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	ok, err := s.UserExists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UserExists(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReservationOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	base := &model.Reservation{UserID: 1, StartTime: 7200, EndTime: 9000}
	require.NoError(t, s.CreateReservation(ctx, base))
	assert.Equal(t, model.StatusActive, base.Status)
	assert.Equal(t, int64(1_700_000_000), base.DateAdded)

	member := &model.Reservation{UserID: 1, StartTime: 3600, EndTime: 5400, PreviousID: mo.Some(base.ID)}
	require.NoError(t, s.CreateReservation(ctx, member))

	list, err := s.ListReservations(ctx, store.ReservationFilter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, member.ID, list[0].ID, "ordered by start time")

	next, err := s.NextInChain(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, next.ID)

	_, err = s.NextInChain(ctx, member.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	base.Extension = 1800
	base.DateAdded = 0
	require.NoError(t, s.UpdateReservation(ctx, base))
	got, err := s.GetReservation(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), got.Extension)
	assert.Equal(t, int64(1_700_000_000), got.DateAdded, "date_added is immutable")

	err = s.UpdateReservation(ctx, &model.Reservation{ID: 42})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	n, err := s.CountReservations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCompleteEnded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ended := &model.Reservation{UserID: 1, StartTime: 0, EndTime: 1800}
	extended := &model.Reservation{UserID: 1, StartTime: 0, EndTime: 1800, Extension: 1800}
	cancelled := &model.Reservation{UserID: 1, StartTime: 0, EndTime: 1800, Status: model.StatusCancelled}
	for _, r := range []*model.Reservation{ended, extended, cancelled} {
		require.NoError(t, s.CreateReservation(ctx, r))
	}

	n, err := s.CompleteEnded(ctx, 1800)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := s.GetReservation(ctx, ended.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	got, _ = s.GetReservation(ctx, extended.ID)
	assert.Equal(t, model.StatusActive, got.Status)
	got, _ = s.GetReservation(ctx, cancelled.ID)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.CreateReservation(ctx, &model.Reservation{UserID: 1}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.CreateReservation(ctx, &model.Reservation{UserID: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, _ := s.CountReservations(ctx, 1)
	assert.Equal(t, int64(1), n)

	// IDs are reused after rollback.
	r := &model.Reservation{UserID: 1}
	require.NoError(t, s.WithinTx(ctx, func(tx store.Store) error {
		return tx.CreateReservation(ctx, r)
	}))
	assert.Equal(t, int64(2), r.ID)
}
