package reservation

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eastern = time.FixedZone("EST", -5*3600)

func TestNormalizeDateAndTime(t *testing.T) {
	n := Normalizer{Location: eastern}

	tests := []struct {
		name string
		tod  TimeOfDay
		want time.Time
	}{
		{"morning", TimeOfDay{Hour: 8, Minute: 30, Meridian: "am"}, time.Date(2024, 6, 1, 8, 30, 0, 0, eastern)},
		{"upper case meridian", TimeOfDay{Hour: 8, Minute: 30, Meridian: "PM"}, time.Date(2024, 6, 1, 20, 30, 0, 0, eastern)},
		{"midnight", TimeOfDay{Hour: 12, Minute: 0, Meridian: "am"}, time.Date(2024, 6, 1, 0, 0, 0, 0, eastern)},
		{"noon", TimeOfDay{Hour: 12, Minute: 0, Meridian: "pm"}, time.Date(2024, 6, 1, 12, 0, 0, 0, eastern)},
		{"24 hour clock", TimeOfDay{Hour: 17, Minute: 0}, time.Date(2024, 6, 1, 17, 0, 0, 0, eastern)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tod := tc.tod
			vals, errs := n.Normalize(Input{Date: "2024-06-01", Time: &tod}, 0)
			require.Empty(t, errs)
			assert.Equal(t, mo.Some(tc.want.Unix()), vals.StartTime)
		})
	}
}

func TestNormalizeDuration(t *testing.T) {
	n := Normalizer{Location: eastern}
	const ts int64 = 1_717_245_000

	vals, errs := n.Normalize(Input{StartTime: At(ts), Duration: mo.Some(int64(3600))}, 0)
	require.Empty(t, errs)
	assert.Equal(t, mo.Some(ts+3600), vals.EndTime)

	// An explicit end wins over the duration.
	vals, errs = n.Normalize(Input{StartTime: At(ts), EndTime: At(ts + 1800), Duration: mo.Some(int64(3600))}, 0)
	require.Empty(t, errs)
	assert.Equal(t, mo.Some(ts+1800), vals.EndTime)

	// No start, no computed end.
	vals, _ = n.Normalize(Input{Duration: mo.Some(int64(3600))}, 0)
	assert.False(t, vals.EndTime.IsPresent())
}

func TestNormalizeIsIdempotentForTimestamps(t *testing.T) {
	n := Normalizer{Location: eastern}
	in := Input{UserID: 3, StartTime: At(1_717_245_000), EndTime: At(1_717_248_600)}

	first, errs := n.Normalize(in, 0)
	require.Empty(t, errs)
	second, errs := n.Normalize(Input{UserID: first.UserID, StartTime: At(first.StartTime.MustGet()), EndTime: At(first.EndTime.MustGet())}, 0)
	require.Empty(t, errs)
	assert.Equal(t, first, second)
	assert.Equal(t, mo.Some(int64(1_717_245_000)), second.StartTime)

	// Digit strings from a form round trip are unix seconds too.
	third, errs := n.Normalize(Input{UserID: 3, StartTime: Text("1717245000"), EndTime: Text("1717248600")}, 0)
	require.Empty(t, errs)
	assert.Equal(t, first, third)
}

func TestNormalizeExtensionAccumulates(t *testing.T) {
	n := Normalizer{}

	stored := int64(0)
	for _, delta := range []int64{2, -1} {
		vals, errs := n.Normalize(Input{Extension: mo.Some(delta)}, stored)
		require.Empty(t, errs)
		stored = vals.Extension.MustGet()
	}
	assert.Equal(t, int64(1800), stored)
}

func TestNormalizeRejectsMalformedTimes(t *testing.T) {
	n := Normalizer{Location: eastern}

	_, errs := n.Normalize(Input{StartTime: Text("next blursday"), EndTime: Text("2024-13-45")}, 0)
	assert.True(t, errs.Has(FieldStartTime, CodeDate))
	assert.True(t, errs.Has(FieldEndTime, CodeDate))

	bad := TimeOfDay{Hour: 14, Minute: 0, Meridian: "pm"}
	vals, errs := n.Normalize(Input{Date: "2024-06-01", Time: &bad}, 0)
	assert.True(t, errs.Has(FieldStartTime, CodeDate))
	assert.False(t, vals.StartTime.IsPresent())
}

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 6, 1, 9, 0, 0, 0, eastern)
	for _, s := range []string{
		"2024-06-01 9:00am",
		"2024-06-01 9:00 AM",
		"2024-06-01 09:00",
		"2024-06-01T09:00:00",
		"06/01/2024 9:00am",
		"Jun 1, 2024 9:00am",
		"2024-06-01T14:00:00Z",
	} {
		got, err := ParseTime(s, eastern)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	got, err := ParseTime("2024-06-01", eastern)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, eastern).Unix(), got.Unix())

	_, err = ParseTime("  ", eastern)
	assert.Error(t, err)
}

func TestParseTimeCompactDateIsNotUnix(t *testing.T) {
	got, err := ParseTime("20240601", eastern)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, eastern).Unix(), got.Unix())

	got, err = ParseTime("1717245000", eastern)
	require.NoError(t, err)
	assert.Equal(t, int64(1_717_245_000), got.Unix())

	got, err = ParseTime("100000000", eastern)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), got.Unix(), "nine digits are unix seconds")

	_, err = ParseTime("12345", eastern)
	assert.Error(t, err)
}
