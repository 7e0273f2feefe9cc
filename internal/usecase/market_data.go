package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	"QuantPull/internal/marketstate"
)

// ErrNoData means every source failed or returned nothing; the ticker is
// temporarily unavailable, not unknown.
var ErrNoData = errors.New("no market data available")

var ErrInvalidTicker = errors.New("invalid ticker")

// MarketData validates and normalizes request parameters before handing
// off to the market state manager.
type MarketData struct {
	manager *marketstate.Manager
}

func NewMarketData(manager *marketstate.Manager) *MarketData {
	return &MarketData{manager: manager}
}

// GetBars fetches bars for ticker. An empty assetClass is inferred from
// the ticker pattern; a caller-supplied one pins the TTL policy and
// source chain. The result may be empty when all sources fail.
func (u *MarketData) GetBars(ctx context.Context, ticker, assetClass, interval string, lookbackDays int, forceRefresh bool) ([]models.Bar, models.AssetClass, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, "", ErrInvalidTicker
	}
	iv := domrepo.NormalizeInterval(interval)
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	class := models.AssetClass(assetClass)
	if class == "" {
		class = models.InferAssetClass(ticker)
	}
	lookback := time.Duration(lookbackDays) * 24 * time.Hour

	bars, err := u.manager.GetMarketData(ctx, ticker, class, string(iv), lookback, forceRefresh)
	if err != nil {
		return nil, class, err
	}
	return bars, class, nil
}
