package repository

import (
	"context"
	"time"

	"QuantPull/internal/domain/models"
)

// BarStore is the persistent OHLCV store. Upsert is idempotent on the
// (ticker, interval, timestamp) key; concurrent writers for the same key
// resolve to last-writer-wins on price fields.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables exist
	Upsert(ctx context.Context, bars []models.Bar) (int, error)
	Query(ctx context.Context, ticker, interval string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// RegistryStore persists ticker access records with a rolling expiry so
// unused records self-expire. Writes are advisory; last-write-wins.
type RegistryStore interface {
	Save(ctx context.Context, rec *models.AccessRecord, ttl time.Duration) error
	LoadAll(ctx context.Context) (map[string]models.AccessRecord, error)
}

// BarPublisher publishes refreshed bars for downstream consumers.
type BarPublisher interface {
	PublishBars(ctx context.Context, bars []models.Bar) error
	Close() error
}

// TickStream is a live price feed.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCacheHit(assetClass string)
	RecordCacheMiss(assetClass string)
	RecordSourceError(source string)
	RecordError(kind string)
	RecordLastPrice(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
