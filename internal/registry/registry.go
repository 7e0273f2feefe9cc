// Package registry tracks per-ticker access frequency over a sliding
// seven-day window and derives the refresh tier each ticker belongs to.
// The registry is an explicitly constructed object owned by the service
// root; records are persisted fire-and-forget to an external key-value
// store and reloaded on warm start.
package registry

import (
	"context"
	"sync"
	"time"

	"QuantPull/internal/domain/models"
	"QuantPull/internal/domain/repository"
	"QuantPull/pkg/logger"
)

// Sliding window: one bucket per hour, 7*24 buckets. An access lands in
// the current hour's bucket; counts older than the window fall out as
// their buckets are reused.
const (
	windowBuckets = 7 * 24
	bucketSize    = time.Hour
)

const (
	defaultRecordTTL  = 7 * 24 * time.Hour
	defaultPersistTTL = 5 * time.Second
)

type entry struct {
	counts     [windowBuckets]int
	hours      [windowBuckets]int64 // unix hour each bucket was last written
	lastAccess time.Time
	tier       models.Tier
}

// weeklyCount sums buckets still inside the window ending at hour.
func (e *entry) weeklyCount(hour int64) int {
	total := 0
	for i := range e.counts {
		if e.hours[i] > hour-windowBuckets {
			total += e.counts[i]
		}
	}
	return total
}

// Registry is the ticker access tracker. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store      repository.RegistryStore // nil disables persistence
	log        *logger.Logger
	now        func() time.Time
	recordTTL  time.Duration
	persistTTL time.Duration
}

type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRecordTTL overrides the rolling expiry on persisted records.
func WithRecordTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.recordTTL = ttl }
}

func New(store repository.RegistryStore, log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries:    make(map[string]*entry),
		store:      store,
		log:        log,
		now:        time.Now,
		recordTTL:  defaultRecordTTL,
		persistTTL: defaultPersistTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordAccess increments the rolling counter for ticker, recomputes its
// tier, and returns it. The updated record is persisted asynchronously;
// persistence failures are logged and never block the caller.
func (r *Registry) RecordAccess(ticker string) models.Tier {
	now := r.now()
	hour := now.Unix() / int64(bucketSize/time.Second)

	r.mu.Lock()
	e, ok := r.entries[ticker]
	if !ok {
		e = &entry{}
		r.entries[ticker] = e
	}
	idx := int(hour % windowBuckets)
	if e.hours[idx] != hour {
		e.counts[idx] = 0
		e.hours[idx] = hour
	}
	e.counts[idx]++
	e.lastAccess = now
	count := e.weeklyCount(hour)
	e.tier = models.TierForCount(count)
	rec := models.AccessRecord{
		Ticker:     ticker,
		Count:      count,
		LastAccess: now,
		Tier:       e.tier,
	}
	r.mu.Unlock()

	r.persist(rec)
	return rec.Tier
}

// GetTier returns the last-known tier for ticker, cold if unseen.
func (r *Registry) GetTier(ticker string) models.Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ticker]
	if !ok {
		return models.TierCold
	}
	return e.tier
}

// ListTickers returns the tickers currently in the given tier.
func (r *Registry) ListTickers(tier models.Tier) []string {
	hour := r.now().Unix() / int64(bucketSize/time.Second)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for ticker, e := range r.entries {
		if models.TierForCount(e.weeklyCount(hour)) == tier {
			out = append(out, ticker)
		}
	}
	return out
}

// Snapshot returns the current record for every tracked ticker.
func (r *Registry) Snapshot() []models.AccessRecord {
	hour := r.now().Unix() / int64(bucketSize/time.Second)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AccessRecord, 0, len(r.entries))
	for ticker, e := range r.entries {
		count := e.weeklyCount(hour)
		out = append(out, models.AccessRecord{
			Ticker:     ticker,
			Count:      count,
			LastAccess: e.lastAccess,
			Tier:       models.TierForCount(count),
		})
	}
	return out
}

// WarmStart seeds the registry from persisted records. Bucket-level
// distribution is not persisted, so the whole count lands in the current
// bucket; it decays over the following week as the window slides.
func (r *Registry) WarmStart(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	now := r.now()
	hour := now.Unix() / int64(bucketSize/time.Second)
	idx := int(hour % windowBuckets)

	r.mu.Lock()
	defer r.mu.Unlock()
	for ticker, rec := range records {
		e := &entry{lastAccess: rec.LastAccess, tier: rec.Tier}
		e.counts[idx] = rec.Count
		e.hours[idx] = hour
		r.entries[ticker] = e
	}
	if r.log != nil {
		r.log.Info("registry warm start", logger.Int("tickers", len(records)))
	}
	return nil
}

func (r *Registry) persist(rec models.AccessRecord) {
	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.persistTTL)
		defer cancel()
		if err := r.store.Save(ctx, &rec, r.recordTTL); err != nil && r.log != nil {
			r.log.Warn("registry persist failed",
				logger.String("ticker", rec.Ticker), logger.Error(err))
		}
	}()
}
