package usecase

import (
	"context"
	"time"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	"QuantPull/internal/registry"
	applogger "QuantPull/pkg/logger"
)

// TickProcessor feeds live ticks into the incremental indicator engine
// and keeps the access registry warm for streamed tickers.
type TickProcessor struct {
	quant    *Quant
	registry *registry.Registry
	metrics  domrepo.Metrics
	log      *applogger.Logger
}

func NewTickProcessor(quant *Quant, reg *registry.Registry, metrics domrepo.Metrics, log *applogger.Logger) *TickProcessor {
	return &TickProcessor{
		quant:    quant,
		registry: reg,
		metrics:  metrics,
		log:      log,
	}
}

// Process updates indicators for one tick. Always succeeds for a valid
// tick; the pipeline upstream owns validation and throttling.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()

	snap := p.quant.UpdatePrice(t.Ticker, t.Price)
	if p.registry != nil {
		p.registry.RecordAccess(t.Ticker)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("tick_process", time.Since(start).Seconds())
	}

	if p.log != nil && snap.MACD != nil {
		p.log.Debug("tick processed",
			applogger.String("ticker", t.Ticker),
			applogger.Any("macd_histogram", snap.MACD.Histogram),
		)
	}
	return nil
}
