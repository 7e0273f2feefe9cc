package usecase

import (
	"context"
	"time"

	"QuantPull/internal/domain/models"
	"QuantPull/internal/registry"
	applogger "QuantPull/pkg/logger"
	"QuantPull/pkg/queue"
)

const refreshJobType = "market.refresh"

// RefreshPayload is the queue payload for one ticker refresh.
type RefreshPayload struct {
	Ticker   string `json:"ticker"`
	Interval string `json:"interval"`
}

// RefreshScheduler keeps hot and warm tiers fresh by enqueueing refresh
// jobs on a fixed cadence. Cold and frozen tiers refresh on demand only.
type RefreshScheduler struct {
	registry     *registry.Registry
	publisher    queue.QueueService
	log          *applogger.Logger
	hotInterval  time.Duration
	warmInterval time.Duration
	cancel       context.CancelFunc
}

type SchedulerOption func(*RefreshScheduler)

func WithHotInterval(d time.Duration) SchedulerOption {
	return func(s *RefreshScheduler) {
		if d > 0 {
			s.hotInterval = d
		}
	}
}

func WithWarmInterval(d time.Duration) SchedulerOption {
	return func(s *RefreshScheduler) {
		if d > 0 {
			s.warmInterval = d
		}
	}
}

func NewRefreshScheduler(reg *registry.Registry, publisher queue.QueueService, log *applogger.Logger, opts ...SchedulerOption) *RefreshScheduler {
	s := &RefreshScheduler{
		registry:     reg,
		publisher:    publisher,
		log:          log,
		hotInterval:  5 * time.Minute,
		warmInterval: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the hot and warm loops. Safe to call once.
func (s *RefreshScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx, models.TierHot, s.hotInterval)
	go s.loop(ctx, models.TierWarm, s.warmInterval)
	s.log.Info("refresh scheduler started",
		applogger.Duration("hot_interval", s.hotInterval),
		applogger.Duration("warm_interval", s.warmInterval))
}

func (s *RefreshScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *RefreshScheduler) loop(ctx context.Context, tier models.Tier, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueTier(ctx, tier)
		}
	}
}

func (s *RefreshScheduler) enqueueTier(ctx context.Context, tier models.Tier) {
	tickers := s.registry.ListTickers(tier)
	for _, t := range tickers {
		payload := RefreshPayload{Ticker: t, Interval: "1d"}
		if err := s.publisher.PublishMessage(ctx, refreshJobType, payload); err != nil {
			s.log.Warn("enqueue refresh failed",
				applogger.String("ticker", t),
				applogger.Error(err))
		}
	}
	if len(tickers) > 0 {
		s.log.Debug("tier refresh enqueued",
			applogger.String("tier", string(tier)),
			applogger.Int("tickers", len(tickers)))
	}
}

// RefreshJob consumes refresh messages and forces a source fetch through
// the cache manager.
type RefreshJob struct {
	market *MarketData
	log    *applogger.Logger
}

func NewRefreshJob(market *MarketData, log *applogger.Logger) *RefreshJob {
	return &RefreshJob{market: market, log: log}
}

func (j *RefreshJob) Name() string { return "market-refresh" }
func (j *RefreshJob) Type() string { return refreshJobType }

func (j *RefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshPayload](payload)
	if err != nil {
		return err
	}
	bars, _, err := j.market.GetBars(ctx, p.Ticker, "", p.Interval, 30, true)
	if err != nil {
		return err
	}
	j.log.Debug("ticker refreshed",
		applogger.String("ticker", p.Ticker),
		applogger.Int("bars", len(bars)))
	return nil
}

var _ queue.Job = (*RefreshJob)(nil)
