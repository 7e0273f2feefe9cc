// Package sources implements the external market data connectors used by
// the market state manager's fallback chain. Each connector owns one
// upstream API and normalizes its payload into validated OHLCV bars.
package sources

import (
	"context"
	"fmt"
	"time"

	xhttp "QuantPull/pkg/http"
	applogger "QuantPull/pkg/logger"
)

// httpBase centralizes client construction and JSON GET handling for the
// connector implementations.
type httpBase struct {
	client *xhttp.Client
	log    *applogger.Logger
}

func newHTTPBase(log *applogger.Logger, timeout time.Duration) httpBase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpBase{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:    log,
	}
}

// getJSON fetches url with query params and decodes the JSON body into dest.
func (b *httpBase) getJSON(ctx context.Context, url string, query map[string][]string, dest interface{}) error {
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	return nil
}

func (b *httpBase) warnDroppedRow(source, ticker string, err error) {
	if b.log != nil {
		b.log.Warn("dropping malformed row",
			applogger.String("source", source),
			applogger.String("ticker", ticker),
			applogger.Error(err))
	}
}
