package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp_UTC(t *testing.T) {
	cet := time.Date(2024, 3, 1, 10, 30, 15, 999, time.FixedZone("CET", 60*60))
	assert.Equal(t, "2024-03-01T09:30:15Z", FormatTimestamp(cet))
}

func TestParseTime_RoundTrip(t *testing.T) {
	// Both are 01:30 local on the night clocks fall back.
	edt := time.Date(2024, 11, 3, 1, 30, 0, 0, time.FixedZone("EDT", -4*60*60))
	est := time.Date(2024, 11, 3, 1, 30, 0, 0, time.FixedZone("EST", -5*60*60))

	for _, ts := range []time.Time{edt, est} {
		got, err := ParseTime(FormatTimestamp(ts))
		require.NoError(t, err)
		assert.True(t, ts.Equal(got), "%s != %s", ts, got)
	}
	assert.NotEqual(t, FormatTimestamp(edt), FormatTimestamp(est))
}

func TestParseTime_Layouts(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

	for _, s := range []string{
		"2024-03-01T09:30:15Z",
		"2024-03-01T10:30:15+01:00",
		"2024-03-01T09:30:15",
		"2024-03-01 09:30:15",
		" 2024-03-01T09:30:15.000 ",
	} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	day, err := ParseTime("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", day.Format(DateLayout))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}
