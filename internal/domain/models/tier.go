package models

import "time"

// Tier is the refresh-priority class for a ticker, derived from its rolling
// weekly access count.
type Tier string

const (
	TierHot    Tier = "hot"    // >= 50 accesses/week, refreshed every few minutes
	TierWarm   Tier = "warm"   // >= 5 accesses/week, refreshed daily
	TierCold   Tier = "cold"   // >= 1 access/week, on-demand only
	TierFrozen Tier = "frozen" // never requested this week
)

// Tier promotion thresholds, inclusive at the lower bound.
const (
	HotThreshold  = 50
	WarmThreshold = 5
	ColdThreshold = 1
)

// TierForCount maps a rolling weekly access count to a tier.
func TierForCount(count int) Tier {
	switch {
	case count >= HotThreshold:
		return TierHot
	case count >= WarmThreshold:
		return TierWarm
	case count >= ColdThreshold:
		return TierCold
	default:
		return TierFrozen
	}
}

// IsValidTier returns true if s is a known tier.
func IsValidTier(s string) bool {
	switch Tier(s) {
	case TierHot, TierWarm, TierCold, TierFrozen:
		return true
	default:
		return false
	}
}

// AccessRecord is the persisted access-pattern state for one ticker.
// Owned exclusively by the ticker registry; advisory everywhere else.
type AccessRecord struct {
	Ticker     string    `json:"ticker"`
	Count      int       `json:"count"`
	LastAccess time.Time `json:"last_access"`
	Tier       Tier      `json:"tier"`
}
