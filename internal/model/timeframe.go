package model

import "time"

// Timeframe is the bar interval identifier. The set is fixed; anything else
// is rejected at session start.
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
)

// timeframeDurations maps each timeframe to its bar duration.
var timeframeDurations = map[Timeframe]time.Duration{
	TFM1:  time.Minute,
	TFM5:  5 * time.Minute,
	TFM15: 15 * time.Minute,
	TFM30: 30 * time.Minute,
	TFH1:  time.Hour,
	TFH4:  4 * time.Hour,
	TFD1:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string. Returns false for anything
// outside the fixed enumeration.
func ParseTimeframe(s string) (Timeframe, bool) {
	tf := Timeframe(s)
	_, ok := timeframeDurations[tf]
	return tf, ok
}

// Duration returns the bar duration for this timeframe (0 if unknown).
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Valid reports whether tf is part of the fixed enumeration.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// Timeframes returns the supported timeframes in ascending bar duration.
func Timeframes() []Timeframe {
	return []Timeframe{TFM1, TFM5, TFM15, TFM30, TFH1, TFH4, TFD1}
}
