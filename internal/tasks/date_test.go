package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateEpoch(t *testing.T) {
	now := time.Now()
	got := ParseDate(Epoch(1700000000000), now)
	assert.Equal(t, int64(1700000000000), got.UnixMilli())
}

func TestParseDateFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := ParseDate(LegacyString("not-a-date"), time.Now())
	after := time.Now()

	assert.False(t, got.IsZero())
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
	assert.WithinDuration(t, time.Now(), got, time.Second)
}

func TestParseDateUnsetFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, now, ParseDate(RawDueDate{}, now))
	assert.Equal(t, now, ParseDate(LegacyString("   "), now))
}

func TestParseDateLegacyLayouts(t *testing.T) {
	now := time.Now()
	want := time.Date(2024, 5, 17, 14, 30, 0, 0, time.UTC)

	cases := map[string]string{
		"rfc3339":       "2024-05-17T14:30:00Z",
		"rfc3339 milli": "2024-05-17T14:30:00.000Z",
		"offset":        "2024-05-17T16:30:00+02:00",
		"rfc1123":       "Fri, 17 May 2024 14:30:00 GMT",
		"js toString":   "Fri May 17 2024 16:30:00 GMT+0200 (Central European Summer Time)",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got := ParseDate(LegacyString(in), now)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}
}

func TestParseDateLegacyDateOnlyIsUTC(t *testing.T) {
	got := ParseDate(LegacyString("2024-05-17"), time.Now())
	assert.True(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestParseDateLegacyLocalLayouts(t *testing.T) {
	now := time.Now()
	want := time.Date(2024, 5, 17, 0, 0, 0, 0, time.Local)

	for _, in := range []string{"May 17, 2024", "5/17/2024", "May 17, 2024 00:00"} {
		got := ParseDate(LegacyString(in), now)
		assert.True(t, want.Equal(got), "%q gave %v", in, got)
	}
}

func TestParseInput(t *testing.T) {
	got, err := ParseInput("2024-05-17 14:30")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 17, 14, 30, 0, 0, time.Local).Equal(got))

	got, err = ParseInput("2024-05-17")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.Local).Equal(got))

	_, err = ParseInput("tomorrow-ish")
	assert.Error(t, err)
}

func TestRawFromValue(t *testing.T) {
	ms, ok := RawFromValue(int64(42)).EpochMillis()
	assert.True(t, ok)
	assert.Equal(t, int64(42), ms)

	ms, ok = RawFromValue(float64(1700000000123.9)).EpochMillis()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000123), ms)

	s, ok := RawFromValue([]byte("2024-01-01")).Legacy()
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", s)

	assert.Nil(t, RawFromValue(nil).Value())
}
