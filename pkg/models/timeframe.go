package models

import (
	"fmt"
	"time"
)

// Timeframe is a leaderboard lookback window.
type Timeframe string

const (
	TimeframeSixHours Timeframe = "six_hours"
	TimeframeDay      Timeframe = "day"
	TimeframeWeek     Timeframe = "week"
	TimeframeMonth    Timeframe = "month"
	TimeframeAllTime  Timeframe = "all_time"
)

// Timeframes returns every timeframe in ascending window order.
func Timeframes() []Timeframe {
	return []Timeframe{
		TimeframeSixHours,
		TimeframeDay,
		TimeframeWeek,
		TimeframeMonth,
		TimeframeAllTime,
	}
}

func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeSixHours, TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeAllTime:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

func (t Timeframe) String() string { return string(t) }

// Seconds is the fixed window length. Month is the mean Gregorian month and
// all_time the mean Gregorian year.
func (t Timeframe) Seconds() int64 {
	switch t {
	case TimeframeSixHours:
		return 21600
	case TimeframeDay:
		return 86400
	case TimeframeWeek:
		return 604800
	case TimeframeMonth:
		return 2629746
	case TimeframeAllTime:
		return 31556952
	}
	return 0
}

func (t Timeframe) Window() time.Duration {
	return time.Duration(t.Seconds()) * time.Second
}

// TTL is half the window so the leaderboard is refreshed at least twice per
// period before it can expire.
func (t Timeframe) TTL() time.Duration {
	return t.Window() / 2
}

// Contains reports whether callDate falls inside [now - window, now].
func (t Timeframe) Contains(callDate, now time.Time) bool {
	return callDate.After(now.Add(-t.Window()))
}
