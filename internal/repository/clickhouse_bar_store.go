package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	pkgch "QuantPull/pkg/clickhouse"
	applogger "QuantPull/pkg/logger"
)

const barsTable = "quantpull.ohlcv_bars"

// BarSchema is the idempotent DDL for the bar store. ReplacingMergeTree
// keyed on (ticker, interval, ts) gives last-writer-wins upsert semantics;
// fetched_at is the replacing version column.
var BarSchema = []string{
	`CREATE DATABASE IF NOT EXISTS quantpull`,
	`CREATE TABLE IF NOT EXISTS ` + barsTable + ` (
        ts         DateTime64(3),
        ticker     LowCardinality(String),
        interval   LowCardinality(String),
        open       Float64,
        high       Float64,
        low        Float64,
        close      Float64,
        volume     Float64,
        adj_close  Float64,
        source     LowCardinality(String),
        fetched_at DateTime64(3) DEFAULT now64(3)
    ) ENGINE = ReplacingMergeTree(fetched_at)
    PARTITION BY toYYYYMM(ts)
    ORDER BY (ticker, interval, ts)`,
}

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db *sql.DB
	l  *applogger.Logger
	ch *pkgch.Client
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return &CHBarStore{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, BarSchema)
}

// Upsert inserts bars in chunks. ReplacingMergeTree resolves duplicate
// (ticker, interval, ts) keys to the latest fetched_at at merge time.
func (s *CHBarStore) Upsert(ctx context.Context, bars []models.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	start := time.Now()
	const chunkSize = 2000
	inserted := 0
	for begin := 0; begin < len(bars); begin += chunkSize {
		end := begin + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-begin)
		args := make([]interface{}, 0, (end-begin)*10)
		for _, b := range bars[begin:end] {
			if b.Ticker == "" || b.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Timestamp,
				b.Ticker,
				b.Interval,
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
				b.AdjClose,
				b.Source,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (ts, ticker, interval, open, high, low, close, volume, adj_close, source) VALUES %s",
			barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse upsert_bars error",
					applogger.String("ticker", bars[begin].Ticker),
					applogger.Int("batch", end-begin),
					applogger.Error(err),
				)
			}
			return inserted, fmt.Errorf("upsert bars: %w", err)
		}
		inserted += len(values)
	}
	if s.l != nil {
		s.l.Debug("clickhouse upsert_bars ok",
			applogger.String("ticker", bars[0].Ticker),
			applogger.Int("rows", inserted),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return inserted, nil
}

// Query returns bars for the window ordered ascending. FINAL collapses
// replaced rows so callers never see stale duplicates.
func (s *CHBarStore) Query(ctx context.Context, ticker, interval string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	const q = `
        SELECT ts, ticker, interval, open, high, low, close, volume, adj_close, source
        FROM ` + barsTable + ` FINAL
        WHERE ticker = ? AND interval = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, interval, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_bars error",
				applogger.String("ticker", ticker),
				applogger.String("interval", interval),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Ticker, &b.Interval,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.AdjClose, &b.Source); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse query_bars scan error",
					applogger.String("ticker", ticker),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query_bars ok",
			applogger.String("ticker", ticker),
			applogger.String("interval", interval),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // pool owned by pkg client
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
