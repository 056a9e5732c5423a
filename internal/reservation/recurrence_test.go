package reservation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const week int64 = 604800

func TestExpandStopsBeforeUntil(t *testing.T) {
	const base int64 = 1_717_245_000

	slots, err := Expand(base, base+1800, Recurrence{Interval: week, Until: base + 3*week + 1})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for i, s := range slots {
		shift := int64(i+1) * week
		assert.Equal(t, Slot{StartTime: base + shift, EndTime: base + 1800 + shift}, s)
	}
}

func TestExpandExcludesBoundary(t *testing.T) {
	const base int64 = 1_717_245_000

	slots, err := Expand(base, base+1800, Recurrence{Interval: week, Until: base + 3*week})
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	slots, err = Expand(base, base+1800, Recurrence{Interval: week, Until: base})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestExpandCapsChainLength(t *testing.T) {
	const base int64 = 1_717_245_000

	slots, err := Expand(base, base+3600, Recurrence{Interval: 86400, Until: base + 365*86400})
	require.NoError(t, err)
	require.Len(t, slots, MaxRecurrences)
	assert.Equal(t, base+int64(MaxRecurrences)*86400, slots[len(slots)-1].StartTime)
	assert.Equal(t, base+3600+int64(MaxRecurrences)*86400, slots[len(slots)-1].EndTime)
}

func TestExpandHugeIntervals(t *testing.T) {
	const base int64 = 1_717_245_000

	for _, interval := range []int64{1 << 33, 1 << 40} {
		slots, err := Expand(base, base+1800, Recurrence{Interval: interval, Until: base + 100*interval})
		require.NoError(t, err)
		require.Len(t, slots, MaxRecurrences, "interval %d", interval)
		assert.Equal(t, Slot{StartTime: base + interval, EndTime: base + 1800 + interval}, slots[0])
		last := int64(MaxRecurrences) * interval
		assert.Equal(t, Slot{StartTime: base + last, EndTime: base + 1800 + last}, slots[len(slots)-1])
	}
}

func TestExpandContinuesPastYear9999(t *testing.T) {
	// Nine days before the end of year 9999.
	base := time.Date(9999, 12, 23, 8, 0, 0, 0, time.UTC).Unix()

	slots, err := Expand(base, base+1800, Recurrence{Interval: 86400, Until: base + 365*86400})
	require.NoError(t, err)
	require.Len(t, slots, MaxRecurrences)
	for i, s := range slots {
		shift := int64(i+1) * 86400
		assert.Equal(t, base+shift, s.StartTime)
	}
}

func TestExpandStopsBeforeOverflow(t *testing.T) {
	const interval int64 = 1 << 62
	slots, err := Expand(0, 1800, Recurrence{Interval: interval, Until: math.MaxInt64})
	require.NoError(t, err)
	assert.Equal(t, []Slot{{StartTime: interval, EndTime: interval + 1800}}, slots)
}

func TestExpandRejectsBadInterval(t *testing.T) {
	_, err := Expand(0, 1800, Recurrence{Interval: 0, Until: 10})
	assert.Error(t, err)
}

func TestParseRecurrence(t *testing.T) {
	loc := time.UTC

	rec, errs := ParseRecurrence(Input{}, loc)
	assert.Empty(t, errs)
	assert.False(t, rec.IsPresent())

	rec, errs = ParseRecurrence(Input{Recurrence: "0", EndRecurrence: "garbage"}, loc)
	assert.Empty(t, errs)
	assert.False(t, rec.IsPresent())

	rec, errs = ParseRecurrence(Input{Recurrence: "604800", EndRecurrence: "2024-07-01"}, loc)
	require.Empty(t, errs)
	r, ok := rec.Get()
	require.True(t, ok)
	assert.Equal(t, week, r.Interval)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, loc).Unix(), r.Until)

	_, errs = ParseRecurrence(Input{Recurrence: "604800"}, loc)
	assert.True(t, errs.Has(FieldEndRecurrence, CodeNotEmpty))

	_, errs = ParseRecurrence(Input{Recurrence: "604800", EndRecurrence: "someday"}, loc)
	assert.True(t, errs.Has(FieldEndRecurrence, CodeDate))

	_, errs = ParseRecurrence(Input{Recurrence: "weekly", EndRecurrence: "2024-07-01"}, loc)
	assert.True(t, errs.Has(FieldRecurrence, CodeDigit))

	_, errs = ParseRecurrence(Input{Recurrence: "-5", EndRecurrence: "2024-07-01"}, loc)
	assert.True(t, errs.Has(FieldRecurrence, CodeDigit))
}
