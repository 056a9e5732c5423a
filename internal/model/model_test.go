package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationEffectiveEnd(t *testing.T) {
	r := Reservation{StartTime: 1800, EndTime: 5400, Extension: -1800}
	assert.Equal(t, int64(3600), r.EffectiveEnd())
	assert.Equal(t, 30*time.Minute, r.Duration())
	assert.Equal(t, time.Unix(3600, 0).UTC(), r.End(time.UTC))
}

func TestReservationPreviousIDJSON(t *testing.T) {
	base := Reservation{ID: 1, Status: StatusActive}
	b, err := json.Marshal(base)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"previous_id":null`)

	member := Reservation{ID: 2, PreviousID: mo.Some[int64](1)}
	b, err = json.Marshal(member)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"previous_id":1`)
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&User{LastName: "Lovelace"}).FullName())
}
