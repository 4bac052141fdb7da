package portfolio

import "time"

// Day represents a calendar day with day-level granularity. Trading-day
// comparisons are day-equality, not a rolling 24-hour window, so the current
// day is passed in explicitly instead of read from the wall clock inline.
type Day struct {
	y int
	m time.Month
	d int
}

// NewDay returns a normalized Day for the given year, month, and day.
func NewDay(year int, month time.Month, day int) Day {
	d := Day{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// DayOf returns the Day containing the given instant, in that instant's location.
func DayOf(t time.Time) Day {
	return NewDay(t.Date())
}

// Today returns the current local day.
func Today() Day { return DayOf(time.Now()) }

// Contains reports whether the instant falls on this day.
func (d Day) Contains(t time.Time) bool {
	return DayOf(t) == d
}

// IsZero reports whether the day is the zero value.
func (d Day) IsZero() bool {
	return d.y == 0 && d.m == 0 && d.d == 0
}

// String formats the day as ISO-8601.
func (d Day) String() string { return d.time().Format("2006-01-02") }

func (d Day) time() time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}
