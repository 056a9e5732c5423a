package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkalot/internal/model"
	"parkalot/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		Now:    func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := &model.User{Email: "Ada@Example.com", FirstName: "Ada", LastName: "Lovelace", PasswordHash: "x", FeedToken: "feed"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, int64(1_700_000_000), u.RegistrationDate)

	err := s.CreateUser(ctx, &model.User{Email: "ada@example.com", PasswordHash: "y"})
	assert.True(t, errors.Is(err, store.ErrConflict), "got %v", err)

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName())

	got, err = s.GetUserByFeedToken(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, 999)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	exists, err := s.UserExists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReservationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := &model.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))

	base := &model.Reservation{UserID: u.ID, StartTime: 3600, EndTime: 5400}
	require.NoError(t, s.CreateReservation(ctx, base))
	assert.Equal(t, model.StatusActive, base.Status)

	member := &model.Reservation{UserID: u.ID, StartTime: 7200, EndTime: 9000, Recurring: true, PreviousID: mo.Some(base.ID)}
	require.NoError(t, s.CreateReservation(ctx, member))

	got, err := s.GetReservation(ctx, member.ID)
	require.NoError(t, err)
	prev, ok := got.PreviousID.Get()
	require.True(t, ok)
	assert.Equal(t, base.ID, prev)
	assert.True(t, got.Recurring)
	assert.Equal(t, int64(1_700_000_000), got.DateAdded)

	next, err := s.NextInChain(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, next.ID)

	base.Recurring = true
	base.Extension = -1800 + 3600
	require.NoError(t, s.UpdateReservation(ctx, base))
	// Writing identical values again is not a missing record.
	require.NoError(t, s.UpdateReservation(ctx, base))

	got, err = s.GetReservation(ctx, base.ID)
	require.NoError(t, err)
	assert.True(t, got.Recurring)
	assert.Equal(t, int64(1800), got.Extension)
	assert.False(t, got.PreviousID.IsPresent())

	err = s.UpdateReservation(ctx, &model.Reservation{ID: 12345, Status: model.StatusActive})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	list, err := s.ListReservations(ctx, store.ReservationFilter{UserID: u.ID, StartAfter: 3600})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, member.ID, list[0].ID)

	n, err := s.CountReservations(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCompleteEndedUsesExtension(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ended := &model.Reservation{UserID: 1, StartTime: 0, EndTime: 1800}
	extended := &model.Reservation{UserID: 1, StartTime: 0, EndTime: 1800, Extension: 1800}
	require.NoError(t, s.CreateReservation(ctx, ended))
	require.NoError(t, s.CreateReservation(ctx, extended))

	n, err := s.CompleteEnded(ctx, 1800)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.ListReservations(ctx, store.ReservationFilter{Statuses: []model.Status{model.StatusActive}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, extended.ID, list[0].ID)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.CreateReservation(ctx, &model.Reservation{UserID: 1, StartTime: 1800, EndTime: 3600}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountReservations(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}
