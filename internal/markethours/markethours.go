// Package markethours models the 24/5 FX trading week: the market opens
// Sunday 22:00 UTC and closes Friday 22:00 UTC, with a handful of
// full-day holiday closures.
package markethours

import (
	"fmt"
	"time"
)

// Weekly boundary, UTC.
const (
	OpenWeekday  = time.Sunday
	CloseWeekday = time.Friday
	RolloverHour = 22 // open Sun 22:00, close Fri 22:00
)

// Calendar answers open/closed questions, optionally with extra holiday
// closures beyond the built-in ones.
type Calendar struct {
	ExtraHolidays []time.Time // date component only, UTC
}

// Default is the calendar with only the built-in closures.
var Default = &Calendar{}

// IsMarketOpen returns true if t falls inside the FX trading week.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	u := t.UTC()
	if c.IsHoliday(u) {
		return false
	}
	switch u.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return u.Hour() >= RolloverHour
	case time.Friday:
		return u.Hour() < RolloverHour
	default:
		return true
	}
}

// NextOpen returns the next weekly open at or after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	u := t.UTC()
	for i := 0; i < 10; i++ {
		d := u.AddDate(0, 0, i)
		open := time.Date(d.Year(), d.Month(), d.Day(), RolloverHour, 0, 0, 0, time.UTC)
		if d.Weekday() == OpenWeekday && open.After(u) && !c.IsHoliday(open) {
			return open
		}
	}
	return u
}

// WeekClose returns the close of the trading week containing t.
func (c *Calendar) WeekClose(t time.Time) time.Time {
	u := t.UTC()
	for i := 0; i < 7; i++ {
		d := u.AddDate(0, 0, i)
		if d.Weekday() == CloseWeekday {
			return time.Date(d.Year(), d.Month(), d.Day(), RolloverHour, 0, 0, 0, time.UTC)
		}
	}
	return u
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsMarketOpen(t) {
		d := c.WeekClose(t).Sub(t.UTC())
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(d))
	}
	next := c.NextOpen(t)
	return fmt.Sprintf("Market Closed, opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t.UTC())))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
