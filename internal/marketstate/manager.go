package marketstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"QuantPull/internal/domain/models"
	"QuantPull/internal/domain/repository"
	domsvc "QuantPull/internal/domain/service"
	"QuantPull/internal/registry"
	"QuantPull/internal/service/ratelimit"
	"QuantPull/pkg/logger"
)

const (
	defaultSourceTimeout  = 10 * time.Second
	defaultSourceCapacity = 5
	defaultSourceRefill   = 1 // tokens per second
)

// Manager orchestrates all market data access: cache-first reads against
// the bar store, TTL-driven freshness, and an ordered source fallback
// chain on miss. Concurrent misses for the same ticker are collapsed by a
// per-ticker lock so only one external fetch runs at a time.
type Manager struct {
	store      repository.BarStore
	registry   *registry.Registry
	connectors map[string]domsvc.SourceConnector
	policies   PolicySet
	calendar   domsvc.MarketCalendar
	publisher  repository.BarPublisher
	metrics    repository.Metrics
	limiter    *ratelimit.Limiter
	log        *logger.Logger

	now            func() time.Time
	sourceTimeout  time.Duration
	sourceCapacity float64
	sourceRefill   float64

	mu       sync.Mutex
	inflight map[string]*inflightLock
}

// inflightLock is a reference-counted per-ticker mutex. The count lets
// the manager drop the map entry once the last waiter releases, so the
// map tracks tickers currently being fetched rather than every ticker
// ever seen.
type inflightLock struct {
	sync.Mutex
	refs int
}

type ManagerOption func(*Manager)

// WithManagerClock overrides the time source.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithSourceTimeout bounds each connector attempt.
func WithSourceTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sourceTimeout = d }
}

// WithPublisher publishes refreshed bars downstream after a successful fetch.
func WithPublisher(p repository.BarPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics records cache and source outcomes.
func WithMetrics(mt repository.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithSourceRateLimit sets the per-source token bucket.
func WithSourceRateLimit(capacity, refillPerSec float64) ManagerOption {
	return func(m *Manager) {
		m.sourceCapacity = capacity
		m.sourceRefill = refillPerSec
	}
}

func NewManager(
	store repository.BarStore,
	reg *registry.Registry,
	connectors map[string]domsvc.SourceConnector,
	policies PolicySet,
	calendar domsvc.MarketCalendar,
	log *logger.Logger,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		store:          store,
		registry:       reg,
		connectors:     connectors,
		policies:       policies,
		calendar:       calendar,
		log:            log,
		now:            time.Now,
		sourceTimeout:  defaultSourceTimeout,
		sourceCapacity: defaultSourceCapacity,
		sourceRefill:   defaultSourceRefill,
		limiter:        ratelimit.New(),
		inflight:       make(map[string]*inflightLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetMarketData returns bars for ticker over the lookback window,
// serving the bar store when the most recent bar is inside the TTL and
// refreshing through the source chain otherwise. All sources failing is
// not an error: the result is empty and callers treat the ticker as
// temporarily unavailable.
func (m *Manager) GetMarketData(ctx context.Context, ticker string, class models.AssetClass, interval string, lookback time.Duration, forceRefresh bool) ([]models.Bar, error) {
	tier := m.registry.RecordAccess(ticker)

	if !forceRefresh {
		if bars, ok, err := m.tryCache(ctx, ticker, class, interval, lookback); err != nil {
			return nil, err
		} else if ok {
			m.log.Debug("cache hit",
				logger.String("ticker", ticker),
				logger.String("tier", string(tier)),
				logger.Int("bars", len(bars)))
			if m.metrics != nil {
				m.metrics.RecordCacheHit(string(class))
			}
			return bars, nil
		}
	}

	lock := m.lockTicker(ticker)
	defer m.unlockTicker(ticker, lock)

	// Another call may have refreshed while we waited on the lock.
	if !forceRefresh {
		if bars, ok, err := m.tryCache(ctx, ticker, class, interval, lookback); err != nil {
			return nil, err
		} else if ok {
			if m.metrics != nil {
				m.metrics.RecordCacheHit(string(class))
			}
			return bars, nil
		}
	}

	if m.metrics != nil {
		m.metrics.RecordCacheMiss(string(class))
	}
	m.log.Info("cache miss, fetching",
		logger.String("ticker", ticker),
		logger.String("asset_class", string(class)),
		logger.Bool("forced", forceRefresh))

	return m.fetchAndStore(ctx, ticker, class, interval, lookback)
}

// tryCache queries the bar store and reports whether the result can be
// served. Freshness is judged only by the most recent bar's timestamp;
// partial staleness inside the window is accepted.
func (m *Manager) tryCache(ctx context.Context, ticker string, class models.AssetClass, interval string, lookback time.Duration) ([]models.Bar, bool, error) {
	now := m.now()
	bars, err := m.store.Query(ctx, ticker, interval, now.Add(-lookback), now)
	if err != nil {
		return nil, false, fmt.Errorf("bar store query: %w", err)
	}
	if len(bars) == 0 {
		return nil, false, nil
	}
	ttl := m.policies.TTL(class, now, m.calendar)
	latest := bars[len(bars)-1].Timestamp
	if latest.Before(now.Add(-ttl)) {
		m.log.Debug("cached bars stale",
			logger.String("ticker", ticker),
			logger.String("latest", latest.Format(time.RFC3339)),
			logger.Duration("ttl", ttl))
		return nil, false, nil
	}
	return bars, true, nil
}

// fetchAndStore walks the source chain in order. Each source gets exactly
// one attempt per call; a rate-limited or unknown source counts as a
// failed attempt and the chain advances.
func (m *Manager) fetchAndStore(ctx context.Context, ticker string, class models.AssetClass, interval string, lookback time.Duration) ([]models.Bar, error) {
	policy := m.policies.Get(class)
	for _, sourceID := range policy.Sources() {
		connector, ok := m.connectors[sourceID]
		if !ok {
			m.log.Warn("unknown source in policy", logger.String("source", sourceID))
			continue
		}
		if !m.limiter.Allow(sourceID, m.sourceCapacity, m.sourceRefill) {
			m.log.Warn("source rate limited",
				logger.String("source", sourceID), logger.String("ticker", ticker))
			continue
		}

		bars, err := m.fetchOne(ctx, connector, ticker, interval, lookback)
		if err != nil {
			if m.metrics != nil {
				m.metrics.RecordSourceError(sourceID)
			}
			m.log.Warn("source failed",
				logger.String("source", sourceID),
				logger.String("ticker", ticker),
				logger.Error(err))
			continue
		}
		if len(bars) == 0 {
			m.log.Warn("source returned no bars",
				logger.String("source", sourceID), logger.String("ticker", ticker))
			continue
		}

		if _, err := m.store.Upsert(ctx, bars); err != nil {
			return nil, fmt.Errorf("bar store upsert: %w", err)
		}
		if m.publisher != nil {
			if err := m.publisher.PublishBars(ctx, bars); err != nil {
				m.log.Warn("bar publish failed",
					logger.String("ticker", ticker), logger.Error(err))
			}
		}
		m.log.Info("refreshed from source",
			logger.String("ticker", ticker),
			logger.String("source", sourceID),
			logger.Int("bars", len(bars)))
		return bars, nil
	}

	m.log.Error("all sources failed",
		logger.String("ticker", ticker), logger.String("asset_class", string(class)))
	return []models.Bar{}, nil
}

// fetchOne runs a single connector attempt under the per-source timeout
// and drops malformed bars before they reach the store.
func (m *Manager) fetchOne(ctx context.Context, c domsvc.SourceConnector, ticker, interval string, lookback time.Duration) ([]models.Bar, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.sourceTimeout)
	defer cancel()

	bars, err := c.FetchHistorical(fetchCtx, ticker, interval, lookback)
	if err != nil {
		return nil, err
	}

	valid := bars[:0]
	for _, b := range bars {
		if b.Source == "" {
			b.Source = c.ID()
		}
		if err := b.Validate(); err != nil {
			m.log.Warn("dropping malformed bar",
				logger.String("ticker", ticker),
				logger.String("source", c.ID()),
				logger.Error(err))
			continue
		}
		valid = append(valid, b)
	}
	return valid, nil
}

func (m *Manager) lockTicker(ticker string) *inflightLock {
	m.mu.Lock()
	lock, ok := m.inflight[ticker]
	if !ok {
		lock = &inflightLock{}
		m.inflight[ticker] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.Lock()
	return lock
}

func (m *Manager) unlockTicker(ticker string, lock *inflightLock) {
	lock.Unlock()
	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.inflight, ticker)
	}
	m.mu.Unlock()
}
