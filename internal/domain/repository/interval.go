package repository

import "time"

// Interval identifies the bar interval of a series.
type Interval string

const (
	IV1m Interval = "1m"
	IV5m Interval = "5m"
	IV1h Interval = "1h"
	IV1d Interval = "1d"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case IV1m, IV5m, IV1h, IV1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default bar interval.
func DefaultInterval() Interval { return IV1d }

// NormalizeInterval converts a raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// Duration returns the bar span for an interval.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case IV1m:
		return time.Minute
	case IV5m:
		return 5 * time.Minute
	case IV1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
