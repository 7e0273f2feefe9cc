package sources

import (
	"context"
	"fmt"
	"time"

	"QuantPull/internal/domain/models"
	applogger "QuantPull/pkg/logger"
)

const yahooDefaultBaseURL = "https://query1.finance.yahoo.com"

// YahooConnector fetches historical bars from the Yahoo Finance chart API.
// Primary source for equities and forex.
type YahooConnector struct {
	httpBase
	baseURL string
}

type YahooOption func(*YahooConnector)

// WithYahooBaseURL overrides the API host, used by tests.
func WithYahooBaseURL(url string) YahooOption {
	return func(c *YahooConnector) { c.baseURL = url }
}

func NewYahooConnector(log *applogger.Logger, timeout time.Duration, opts ...YahooOption) *YahooConnector {
	c := &YahooConnector{
		httpBase: newHTTPBase(log, timeout),
		baseURL:  yahooDefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *YahooConnector) ID() string { return "yahoo" }

// chartResponse is the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *YahooConnector) FetchHistorical(ctx context.Context, ticker, interval string, lookback time.Duration) ([]models.Bar, error) {
	var resp chartResponse
	query := map[string][]string{
		"range":    {yahooRange(lookback)},
		"interval": {yahooInterval(interval)},
		"events":   {"div,splits"},
	}
	url := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, ticker)
	if err := c.getJSON(ctx, url, query, &resp); err != nil {
		return nil, err
	}
	return c.parseChart(ticker, interval, &resp)
}

func (c *YahooConnector) parseChart(ticker, interval string, resp *chartResponse) ([]models.Bar, error) {
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s (%s)",
			resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		row, err := quoteRow(quote.Open, quote.High, quote.Low, quote.Close, quote.Volume, i)
		if err != nil {
			c.warnDroppedRow(c.ID(), ticker, err)
			continue
		}
		b := models.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Ticker:    ticker,
			Interval:  interval,
			Open:      row[0],
			High:      row[1],
			Low:       row[2],
			Close:     row[3],
			Volume:    row[4],
			AdjClose:  row[3],
			Source:    c.ID(),
		}
		if i < len(adj) && adj[i] != nil {
			b.AdjClose = *adj[i]
		}
		if err := b.Validate(); err != nil {
			c.warnDroppedRow(c.ID(), ticker, err)
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// quoteRow extracts one aligned OHLCV row, rejecting rows with gaps.
func quoteRow(open, high, low, close, volume []*float64, i int) ([5]float64, error) {
	var out [5]float64
	cols := [][]*float64{open, high, low, close, volume}
	for j, col := range cols {
		if i >= len(col) || col[i] == nil {
			return out, fmt.Errorf("missing field at row %d", i)
		}
		out[j] = *col[i]
	}
	return out, nil
}

func yahooInterval(interval string) string {
	switch interval {
	case "1h":
		return "60m"
	default:
		return interval
	}
}

func yahooRange(lookback time.Duration) string {
	days := int(lookback.Hours() / 24)
	switch {
	case days <= 0:
		return "1d"
	case days > 730:
		return "max"
	default:
		return fmt.Sprintf("%dd", days)
	}
}
