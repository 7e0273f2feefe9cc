package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"QuantPull/internal/domain/models"
	applogger "QuantPull/pkg/logger"
)

const (
	binanceDefaultBaseURL = "https://api.binance.com"
	binanceMaxKlines      = 1000
)

// BinanceConnector fetches klines from the Binance spot REST API.
// Primary source for crypto pairs.
type BinanceConnector struct {
	httpBase
	baseURL string
}

type BinanceOption func(*BinanceConnector)

// WithBinanceBaseURL overrides the API host, used by tests.
func WithBinanceBaseURL(url string) BinanceOption {
	return func(c *BinanceConnector) { c.baseURL = url }
}

func NewBinanceConnector(log *applogger.Logger, timeout time.Duration, opts ...BinanceOption) *BinanceConnector {
	c := &BinanceConnector{
		httpBase: newHTTPBase(log, timeout),
		baseURL:  binanceDefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BinanceConnector) ID() string { return "binance" }

func (c *BinanceConnector) FetchHistorical(ctx context.Context, ticker, interval string, lookback time.Duration) ([]models.Bar, error) {
	// klines rows are positional arrays of mixed number/string values
	var rows []json.RawMessage
	query := map[string][]string{
		"symbol":    {ticker},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(time.Now().Add(-lookback).UnixMilli(), 10)},
		"limit":     {strconv.Itoa(binanceMaxKlines)},
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/v3/klines", query, &rows); err != nil {
		return nil, err
	}
	return c.parseKlines(ticker, interval, rows)
}

func (c *BinanceConnector) parseKlines(ticker, interval string, rows []json.RawMessage) ([]models.Bar, error) {
	bars := make([]models.Bar, 0, len(rows))
	for i, raw := range rows {
		var row []interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			c.warnDroppedRow(c.ID(), ticker, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		b, err := klineToBar(ticker, interval, row)
		if err != nil {
			c.warnDroppedRow(c.ID(), ticker, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		if err := b.Validate(); err != nil {
			c.warnDroppedRow(c.ID(), ticker, err)
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// klineToBar decodes one positional kline:
// [openTime, open, high, low, close, volume, closeTime, ...].
func klineToBar(ticker, interval string, row []interface{}) (models.Bar, error) {
	if len(row) < 6 {
		return models.Bar{}, fmt.Errorf("short kline row: %d fields", len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return models.Bar{}, fmt.Errorf("bad open time %v", row[0])
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return models.Bar{}, fmt.Errorf("field %d not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return models.Bar{
		Timestamp: time.UnixMilli(int64(openMs)).UTC(),
		Ticker:    ticker,
		Interval:  interval,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		AdjClose:  vals[3],
		Source:    "binance",
	}, nil
}
