package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeSeconds(t *testing.T) {
	assert.Equal(t, int64(21600), TimeframeSixHours.Seconds())
	assert.Equal(t, int64(86400), TimeframeDay.Seconds())
	assert.Equal(t, int64(604800), TimeframeWeek.Seconds())
	assert.Equal(t, int64(2629746), TimeframeMonth.Seconds())
	assert.Equal(t, int64(31556952), TimeframeAllTime.Seconds())
}

func TestTimeframeTTLIsHalfWindow(t *testing.T) {
	for _, tf := range Timeframes() {
		assert.Equal(t, tf.Window()/2, tf.TTL(), tf.String())
	}
	assert.Equal(t, 3*time.Hour, TimeframeSixHours.TTL())
}

func TestTimeframeContains(t *testing.T) {
	now := time.Now()

	assert.True(t, TimeframeDay.Contains(now.Add(-23*time.Hour), now))
	assert.False(t, TimeframeDay.Contains(now.Add(-25*time.Hour), now))

	// A day-old call is out of six_hours but inside every longer window.
	old := now.Add(-24 * time.Hour)
	assert.False(t, TimeframeSixHours.Contains(old, now))
	assert.True(t, TimeframeWeek.Contains(old, now))
	assert.True(t, TimeframeAllTime.Contains(old, now))
}

func TestParseTimeframe(t *testing.T) {
	for _, tf := range Timeframes() {
		got, err := ParseTimeframe(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, got)
	}

	_, err := ParseTimeframe("fortnight")
	assert.Error(t, err)
}
