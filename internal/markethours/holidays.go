package markethours

import "time"

// Full-day FX closures. Unlike equities, FX only shuts for the two
// holidays most liquidity providers observe.
var fxHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.December, 25}, // Christmas
}

// IsHoliday returns true if the UTC date is a closure day, built-in or
// configured on the calendar.
func (c *Calendar) IsHoliday(t time.Time) bool {
	u := t.UTC()
	for _, h := range fxHolidays {
		if u.Month() == h.month && u.Day() == h.day {
			return true
		}
	}
	for _, d := range c.ExtraHolidays {
		if u.Year() == d.Year() && u.Month() == d.Month() && u.Day() == d.Day() {
			return true
		}
	}
	return false
}
