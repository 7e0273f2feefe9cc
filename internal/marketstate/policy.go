// Package marketstate decides, per ticker and asset class, whether cached
// bars can be served or must be refreshed from an ordered chain of external
// sources.
package marketstate

import (
	"time"

	"QuantPull/internal/domain/models"
	domsvc "QuantPull/internal/domain/service"
)

// TTLPolicy is the per-asset-class cache freshness configuration. Policies
// are fixed at construction and never mutated at runtime.
type TTLPolicy struct {
	TradingHoursTTL time.Duration `yaml:"trading_hours_ttl"`
	OffHoursTTL     time.Duration `yaml:"off_hours_ttl"`
	PrimarySource   string        `yaml:"primary_source"`
	FallbackSources []string      `yaml:"fallback_sources"`
}

// Sources returns the full fetch chain, primary first.
func (p TTLPolicy) Sources() []string {
	out := make([]string, 0, 1+len(p.FallbackSources))
	if p.PrimarySource != "" {
		out = append(out, p.PrimarySource)
	}
	return append(out, p.FallbackSources...)
}

// PolicySet maps asset classes to their TTL policies. Unknown classes fall
// back to the equity policy.
type PolicySet map[models.AssetClass]TTLPolicy

// DefaultPolicies returns the built-in policy table. Crypto trades around
// the clock so both TTLs are tight; macro series barely move.
func DefaultPolicies() PolicySet {
	return PolicySet{
		models.AssetEquity: {
			TradingHoursTTL: 15 * time.Minute,
			OffHoursTTL:     24 * time.Hour,
			PrimarySource:   "yahoo",
			FallbackSources: []string{"binance", "fred"},
		},
		models.AssetCrypto: {
			TradingHoursTTL: 2 * time.Minute,
			OffHoursTTL:     5 * time.Minute,
			PrimarySource:   "binance",
			FallbackSources: []string{"yahoo"},
		},
		models.AssetForex: {
			TradingHoursTTL: 5 * time.Minute,
			OffHoursTTL:     15 * time.Minute,
			PrimarySource:   "yahoo",
			FallbackSources: nil,
		},
		models.AssetMacro: {
			TradingHoursTTL: 7 * 24 * time.Hour,
			OffHoursTTL:     30 * 24 * time.Hour,
			PrimarySource:   "fred",
			FallbackSources: nil,
		},
		models.AssetFundamentals: {
			TradingHoursTTL: 7 * 24 * time.Hour,
			OffHoursTTL:     7 * 24 * time.Hour,
			PrimarySource:   "yahoo",
			FallbackSources: nil,
		},
		models.AssetNews: {
			TradingHoursTTL: time.Hour,
			OffHoursTTL:     time.Hour,
			PrimarySource:   "yahoo",
			FallbackSources: nil,
		},
	}
}

// Get returns the policy for class, defaulting to equity.
func (s PolicySet) Get(class models.AssetClass) TTLPolicy {
	if p, ok := s[class]; ok {
		return p
	}
	return s[models.AssetEquity]
}

// TTL returns the freshness window for class at time t. Crypto is always
// considered in trading hours.
func (s PolicySet) TTL(class models.AssetClass, t time.Time, cal domsvc.MarketCalendar) time.Duration {
	p := s.Get(class)
	if class == models.AssetCrypto {
		return p.TradingHoursTTL
	}
	if cal != nil && cal.IsTradingTime(t) {
		return p.TradingHoursTTL
	}
	return p.OffHoursTTL
}
