package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" 1D ")
	require.NoError(t, err)
	assert.Equal(t, FreqDay, f)

	f, err = ParseFrequency("5m")
	require.NoError(t, err)
	assert.Equal(t, Freq5m, f)

	_, err = ParseFrequency("2d")
	assert.Error(t, err)
	_, err = ParseFrequency("")
	assert.Error(t, err)
}

func TestFrequencyDuration(t *testing.T) {
	assert.Equal(t, time.Minute, Freq1m.Duration())
	assert.Equal(t, 4*time.Hour, Freq4h.Duration())
	assert.Equal(t, 24*time.Hour, FreqDay.Duration())
	assert.Equal(t, 7*24*time.Hour, FreqWk.Duration())
	assert.Equal(t, 24*time.Hour, Frequency("bogus").Duration())
}

func TestNewDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	r, err := NewDateRange(start, end)
	require.NoError(t, err)
	assert.Equal(t, start, r.Start)
	assert.Equal(t, 31, r.Days())

	_, err = NewDateRange(end, start)
	assert.Error(t, err, "end before start")
	_, err = NewDateRange(time.Time{}, end)
	assert.Error(t, err, "zero bound")
}

func TestDateRangeContains(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	r, err := NewDateRange(start, end)
	require.NoError(t, err)

	assert.True(t, r.Contains(start), "closed on the left")
	assert.True(t, r.Contains(end), "closed on the right")
	assert.True(t, r.Contains(start.AddDate(0, 0, 5)))
	assert.False(t, r.Contains(start.Add(-time.Second)))
	assert.False(t, r.Contains(end.Add(time.Second)))
}
