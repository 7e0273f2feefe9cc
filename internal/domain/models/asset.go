package models

import "strings"

// AssetClass selects the TTL policy for a ticker. The classification is
// immutable and derived from the ticker pattern only.
type AssetClass string

const (
	AssetEquity       AssetClass = "equity"
	AssetCrypto       AssetClass = "crypto"
	AssetForex        AssetClass = "forex"
	AssetMacro        AssetClass = "macro"
	AssetFundamentals AssetClass = "fundamentals"
	AssetNews         AssetClass = "news"
)

// IsValidAssetClass returns true if s is a supported asset class.
func IsValidAssetClass(s string) bool {
	switch AssetClass(s) {
	case AssetEquity, AssetCrypto, AssetForex, AssetMacro, AssetFundamentals, AssetNews:
		return true
	default:
		return false
	}
}

var cryptoBases = map[string]bool{"BTC": true, "ETH": true, "SOL": true}

var forexCurrencies = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "JPY": true, "AUD": true, "CAD": true,
}

var macroSeries = map[string]bool{
	"GDP": true, "CPI": true, "UNRATE": true, "FEDFUNDS": true, "VIX": true,
}

// InferAssetClass derives an asset class from ticker suffix/length heuristics.
// Unknown patterns default to equity.
func InferAssetClass(ticker string) AssetClass {
	t := strings.ToUpper(ticker)

	if strings.HasSuffix(t, "USDT") || strings.HasSuffix(t, "USD") ||
		strings.HasSuffix(t, "BTC") || strings.HasSuffix(t, "ETH") || cryptoBases[t] {
		return AssetCrypto
	}
	if len(t) == 6 && forexCurrencies[t[:3]] {
		return AssetForex
	}
	if macroSeries[t] {
		return AssetMacro
	}
	return AssetEquity
}
