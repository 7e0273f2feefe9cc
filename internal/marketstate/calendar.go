package marketstate

import (
	"time"
)

// WindowCalendar approximates trading hours as a weekday hour window in a
// fixed location. Exchange-specific holiday calendars are out of scope; a
// stale TTL on a holiday only costs one extra source fetch.
type WindowCalendar struct {
	openHour  int
	closeHour int // inclusive
	loc       *time.Location
}

type CalendarOption func(*WindowCalendar)

// WithHours overrides the open/close hours (close inclusive).
func WithHours(open, close int) CalendarOption {
	return func(c *WindowCalendar) {
		c.openHour = open
		c.closeHour = close
	}
}

// WithLocation overrides the timezone the window is evaluated in.
func WithLocation(loc *time.Location) CalendarOption {
	return func(c *WindowCalendar) { c.loc = loc }
}

// NewWindowCalendar returns a weekday 09-17 UTC calendar by default.
func NewWindowCalendar(opts ...CalendarOption) *WindowCalendar {
	c := &WindowCalendar{openHour: 9, closeHour: 17, loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsTradingTime reports whether t falls on a weekday inside the hour window.
func (c *WindowCalendar) IsTradingTime(t time.Time) bool {
	t = t.In(c.loc)
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := t.Hour()
	return h >= c.openHour && h <= c.closeHour
}
