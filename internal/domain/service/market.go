package service

import (
	"context"
	"time"

	"QuantPull/internal/domain/models"
)

// SourceConnector fetches historical bars from one external provider.
// All providers implement this single method uniformly; failures are
// recovered by the caller trying the next source in the chain.
type SourceConnector interface {
	ID() string
	FetchHistorical(ctx context.Context, ticker, interval string, lookback time.Duration) ([]models.Bar, error)
}

// MarketCalendar decides whether a given instant counts as trading time
// for TTL selection. Injectable so tests can simulate arbitrary clocks.
type MarketCalendar interface {
	IsTradingTime(t time.Time) bool
}
