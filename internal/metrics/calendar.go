package metrics

import (
	"time"

	"cognita/internal/core"
)

// Calendar maps instants to calendar days in a single fixed location.
// Every "same day" decision in this package goes through it.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc, or UTC when loc is nil.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Key formats the calendar day of t as YYYY-MM-DD.
func (c Calendar) Key(t time.Time) string {
	return t.In(c.Location()).Format(core.DateKeyLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func (c Calendar) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(c.Location()).Date()
	by, bm, bd := b.In(c.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// LastDays returns midnight of the n calendar days ending on now's day, oldest first.
func (c Calendar) LastDays(now time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	y, m, d := now.In(c.Location()).Date()
	days := make([]time.Time, n)
	for i := 0; i < n; i++ {
		days[i] = time.Date(y, m, d-(n-1-i), 0, 0, 0, 0, c.Location())
	}
	return days
}
