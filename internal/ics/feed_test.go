package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkalot/internal/model"
)

func TestBuildFeedRoundTrip(t *testing.T) {
	start := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	user := &model.User{ID: 1, FirstName: "Dana", LastName: "Reyes"}
	reservations := []model.Reservation{
		{
			ID: 7, UserID: 1,
			StartTime: start.Unix(), EndTime: start.Add(time.Hour).Unix(),
			Extension: 1800,
			Status:    model.StatusActive,
			DateAdded: start.Add(-48 * time.Hour).Unix(),
		},
		{
			ID: 8, UserID: 1,
			StartTime: start.Add(7 * 24 * time.Hour).Unix(), EndTime: start.Add(7*24*time.Hour + time.Hour).Unix(),
			Recurring:  true,
			PreviousID: mo.Some(int64(7)),
			Status:     model.StatusCancelled,
		},
	}

	body := BuildFeed(user, reservations, FeedOptions{
		Location: time.UTC,
		BaseURL:  "https://parking.example.com/",
		Now:      start,
	})
	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Contains(t, body, "X-WR-CALNAME:Parking: Dana Reyes")
	assert.Contains(t, body, "https://parking.example.com/reservation/edit/7")

	events, err := ParseFeed([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, EventUID(7), first.UID)
	assert.Equal(t, int64(7), first.ReservationID)
	assert.Equal(t, "CONFIRMED", first.Status)
	assert.True(t, start.Equal(first.Start))
	assert.True(t, start.Add(90*time.Minute).Equal(first.End), "end includes the extension")

	second := events[1]
	assert.Equal(t, "CANCELLED", second.Status)
	assert.Equal(t, "Parking reservation (recurring)", second.Summary)
}

func TestParseFeedRejectsEmpty(t *testing.T) {
	_, err := ParseFeed(nil)
	assert.Error(t, err)
}

func TestFormatSpan(t *testing.T) {
	assert.Equal(t, "1h 30m", FormatSpan(5400))
	assert.Equal(t, "0h 30m", FormatSpan(1800))
	assert.Equal(t, "3h 0m", FormatSpan(10800))
}

func TestReservationID(t *testing.T) {
	assert.Equal(t, int64(42), reservationID(EventUID(42)))
	assert.Zero(t, reservationID("something@else"))
	assert.Zero(t, reservationID("reservation-x@parkalot"))
	assert.False(t, strings.Contains(EventUID(1), " "))
}
