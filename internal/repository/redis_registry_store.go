package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	"QuantPull/pkg/cache"
	applogger "QuantPull/pkg/logger"
)

const tickerKeyPrefix = "ticker:"

// RedisRegistryStore persists ticker access records as JSON values with a
// rolling expiry, so records for unused tickers self-expire.
type RedisRegistryStore struct {
	cache cache.Service
	l     *applogger.Logger
}

func NewRedisRegistryStore(c cache.Service) *RedisRegistryStore {
	return &RedisRegistryStore{cache: c}
}

// SetLogger injects a structured logger.
func (s *RedisRegistryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisRegistryStore) Save(ctx context.Context, rec *models.AccessRecord, ttl time.Duration) error {
	if err := s.cache.Set(ctx, tickerKeyPrefix+rec.Ticker, rec, ttl); err != nil {
		return fmt.Errorf("save access record: %w", err)
	}
	return nil
}

// LoadAll scans every persisted record. Records that fail to decode are
// skipped; a corrupt entry must not poison a warm start.
func (s *RedisRegistryStore) LoadAll(ctx context.Context) (map[string]models.AccessRecord, error) {
	raw, err := s.cache.GetByPattern(ctx, tickerKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("load access records: %w", err)
	}

	out := make(map[string]models.AccessRecord, len(raw))
	for key, val := range raw {
		var rec models.AccessRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			if s.l != nil {
				s.l.Warn("skipping corrupt access record",
					applogger.String("key", key), applogger.Error(err))
			}
			continue
		}
		if rec.Ticker == "" {
			continue
		}
		out[rec.Ticker] = rec
	}
	return out, nil
}

var _ domrepo.RegistryStore = (*RedisRegistryStore)(nil)
