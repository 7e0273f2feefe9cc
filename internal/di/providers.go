package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	domrepo "QuantPull/internal/domain/repository"
	domsvc "QuantPull/internal/domain/service"
	"QuantPull/internal/handler/api"
	"QuantPull/internal/marketstate"
	mid "QuantPull/internal/middleware"
	"QuantPull/internal/registry"
	internalrepo "QuantPull/internal/repository"
	icache "QuantPull/internal/service/cache"
	"QuantPull/internal/service/finnhub"
	"QuantPull/internal/service/sources"
	"QuantPull/internal/usecase"
	pkgcache "QuantPull/pkg/cache"
	pkgch "QuantPull/pkg/clickhouse"
	"QuantPull/pkg/config"
	pkgkafka "QuantPull/pkg/kafka"
	applogger "QuantPull/pkg/logger"
	"QuantPull/pkg/metrics"
	"QuantPull/pkg/queue"
	"QuantPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the Redis cache service.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	host, port := splitAddr(cfg.Redis.Addr)
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "quantpull"
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(prefix),
	)
}

func splitAddr(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the ClickHouse bar store and initializes its schema.
func ProvideBarStore(chClient *pkgch.Client, l *applogger.Logger) (domrepo.BarStore, error) {
	store := internalrepo.NewCHBarStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store schema: %w", err)
	}
	return store, nil
}

// ProvideRegistryStore creates the access record store. Records are
// read-mostly, so a memory layer fronts Redis.
func ProvideRegistryStore(rc *pkgcache.RedisCache, l *applogger.Logger) domrepo.RegistryStore {
	s := internalrepo.NewRedisRegistryStore(pkgcache.NewLayeredCache(rc))
	s.SetLogger(l)
	return s
}

// ProvideRegistry creates the access registry and warm-starts it from Redis.
func ProvideRegistry(store domrepo.RegistryStore, l *applogger.Logger) *registry.Registry {
	reg := registry.New(store, l)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.WarmStart(ctx); err != nil {
		l.Warn("registry warm start failed", applogger.Error(err))
	}
	return reg
}

// ProvideConnectors builds the source connector registry.
func ProvideConnectors(cfg *config.Config, l *applogger.Logger) map[string]domsvc.SourceConnector {
	timeout := cfg.Sources.Timeout
	conns := []domsvc.SourceConnector{
		sources.NewYahooConnector(l, timeout),
		sources.NewBinanceConnector(l, timeout),
	}
	if cfg.Sources.FredAPIKey != "" {
		conns = append(conns, sources.NewFredConnector(l, cfg.Sources.FredAPIKey, timeout))
	}
	return sources.BuildRegistry(conns...)
}

// ProvideCalendar creates the trading window calendar.
func ProvideCalendar(cfg *config.Config) domsvc.MarketCalendar {
	opts := []marketstate.CalendarOption{}
	if cfg.Market.TradingOpenHour != 0 || cfg.Market.TradingCloseHour != 0 {
		opts = append(opts, marketstate.WithHours(cfg.Market.TradingOpenHour, cfg.Market.TradingCloseHour))
	}
	if cfg.Market.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Market.Timezone); err == nil {
			opts = append(opts, marketstate.WithLocation(loc))
		}
	}
	return marketstate.NewWindowCalendar(opts...)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideManager creates the market state manager.
func ProvideManager(
	store domrepo.BarStore,
	reg *registry.Registry,
	connectors map[string]domsvc.SourceConnector,
	calendar domsvc.MarketCalendar,
	producer *pkgkafka.Producer,
	mt domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *marketstate.Manager {
	opts := []marketstate.ManagerOption{
		marketstate.WithMetrics(mt),
	}
	if cfg.Sources.Timeout > 0 {
		opts = append(opts, marketstate.WithSourceTimeout(cfg.Sources.Timeout))
	}
	if cfg.Sources.RateLimit.Capacity > 0 {
		opts = append(opts, marketstate.WithSourceRateLimit(cfg.Sources.RateLimit.Capacity, cfg.Sources.RateLimit.RefillPerSec))
	}
	if producer != nil && cfg.Kafka.BarsTopic != "" {
		opts = append(opts, marketstate.WithPublisher(internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.BarsTopic)))
	}
	return marketstate.NewManager(store, reg, connectors, marketstate.DefaultPolicies(), calendar, l, opts...)
}

// ProvideMarketData creates the market data use case.
func ProvideMarketData(manager *marketstate.Manager) *usecase.MarketData {
	return usecase.NewMarketData(manager)
}

// ProvideQuant creates the analysis use case.
func ProvideQuant(market *usecase.MarketData, mt domrepo.Metrics, l *applogger.Logger) *usecase.Quant {
	return usecase.NewQuant(market, mt, l)
}

// ProvideTickProcessor creates the tick processor.
func ProvideTickProcessor(quant *usecase.Quant, reg *registry.Registry, mt domrepo.Metrics, l *applogger.Logger) *usecase.TickProcessor {
	return usecase.NewTickProcessor(quant, reg, mt, l)
}

// ProvideTickStream creates the WebSocket tick stream, or nil when disabled.
func ProvideTickStream(cfg *config.Config) domrepo.TickStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	return finnhub.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Tickers,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideTickCollector creates the tick collector, or nil without a stream.
func ProvideTickCollector(
	stream domrepo.TickStream,
	proc *usecase.TickProcessor,
	mt domrepo.Metrics,
	cfg *config.Config,
) *usecase.TickCollector {
	if stream == nil {
		return nil
	}
	pipeOpts := []mid.PipelineOption{}
	if cfg.Stream.MaxRPS > 0 {
		pipeOpts = append(pipeOpts, mid.WithMaxRPS(cfg.Stream.MaxRPS))
	}
	if cfg.Stream.BufferSize > 0 {
		pipeOpts = append(pipeOpts, mid.WithBufferSize(cfg.Stream.BufferSize))
	}
	pipe := mid.NewRealtimePipeline(proc, mt, pipeOpts...)
	return usecase.NewTickCollector(stream, proc, mt, pipe)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler registers the handler for the ticks topic.
func ProvideKafkaTicksHandler(proc *usecase.TickProcessor, mt domrepo.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, proc, mt)
}

// ProvideRefreshQueue creates the Redis refresh job queue, or nil when the
// scheduler is disabled.
func ProvideRefreshQueue(cfg *config.Config, rc *pkgcache.RedisCache, market *usecase.MarketData, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		RetryLimit: cfg.Scheduler.RetryLimit,
		RetryDelay: cfg.Scheduler.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewRefreshJob(market, l))
	q.RegisterJob(usecase.NewLogDrainJob(l))

	// Route aggregated error logs through the queue so repeated failures
	// surface as one counted entry.
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          usecase.LogAggregateType,
		Publisher:      q,
	})
	return q
}

// ProvideScheduler creates the tier refresh scheduler, or nil without a queue.
func ProvideScheduler(reg *registry.Registry, q *queue.RedisQueue, cfg *config.Config, l *applogger.Logger) *usecase.RefreshScheduler {
	if q == nil {
		return nil
	}
	opts := []usecase.SchedulerOption{}
	if cfg.Scheduler.HotInterval > 0 {
		opts = append(opts, usecase.WithHotInterval(cfg.Scheduler.HotInterval))
	}
	if cfg.Scheduler.WarmInterval > 0 {
		opts = append(opts, usecase.WithWarmInterval(cfg.Scheduler.WarmInterval))
	}
	return usecase.NewRefreshScheduler(reg, q, l, opts...)
}

// ProvideHTTPHandler creates the market API handler with a response cache.
// Redis-backed when the shared client is up, in-process TTL map otherwise.
func ProvideHTTPHandler(l *applogger.Logger, rc *pkgcache.RedisCache, market *usecase.MarketData, quant *usecase.Quant, reg *registry.Registry) *api.MarketEchoHandler {
	h := api.NewMarketEchoHandler(l, market, quant, reg)
	if rc != nil {
		h.SetCache(icache.NewRedisCacheFromClient(rc.Client()))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	q *queue.RedisQueue,
	sched *usecase.RefreshScheduler,
	handler *api.MarketEchoHandler,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, collector, consumer, kh, q, sched, handler, chClient)
}
