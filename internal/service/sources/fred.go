package sources

import (
	"context"
	"strconv"
	"time"

	"QuantPull/internal/domain/models"
	applogger "QuantPull/pkg/logger"
)

const fredDefaultBaseURL = "https://api.stlouisfed.org"

// FredConnector fetches macro series observations from the FRED API and
// maps them to close-only bars (a macro series has one value per period).
type FredConnector struct {
	httpBase
	baseURL string
	apiKey  string
}

type FredOption func(*FredConnector)

// WithFredBaseURL overrides the API host, used by tests.
func WithFredBaseURL(url string) FredOption {
	return func(c *FredConnector) { c.baseURL = url }
}

func NewFredConnector(log *applogger.Logger, apiKey string, timeout time.Duration, opts ...FredOption) *FredConnector {
	c := &FredConnector{
		httpBase: newHTTPBase(log, timeout),
		baseURL:  fredDefaultBaseURL,
		apiKey:   apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FredConnector) ID() string { return "fred" }

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (c *FredConnector) FetchHistorical(ctx context.Context, ticker, interval string, lookback time.Duration) ([]models.Bar, error) {
	var resp fredResponse
	query := map[string][]string{
		"series_id":         {ticker},
		"api_key":           {c.apiKey},
		"file_type":         {"json"},
		"observation_start": {time.Now().Add(-lookback).Format("2006-01-02")},
	}
	if err := c.getJSON(ctx, c.baseURL+"/fred/series/observations", query, &resp); err != nil {
		return nil, err
	}
	return c.parseObservations(ticker, interval, &resp)
}

func (c *FredConnector) parseObservations(ticker, interval string, resp *fredResponse) ([]models.Bar, error) {
	bars := make([]models.Bar, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		if obs.Value == "." {
			// FRED's marker for a missing observation
			continue
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			c.warnDroppedRow(c.ID(), ticker, err)
			continue
		}
		ts, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			c.warnDroppedRow(c.ID(), ticker, err)
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: ts.UTC(),
			Ticker:    ticker,
			Interval:  interval,
			Open:      v,
			High:      v,
			Low:       v,
			Close:     v,
			AdjClose:  v,
			Source:    c.ID(),
		})
	}
	return bars, nil
}
