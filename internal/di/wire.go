//go:build wireinject
// +build wireinject

package di

import (
	"QuantPull/pkg/config"
	"QuantPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Stores and registry
		ProvideBarStore,
		ProvideRegistryStore,
		ProvideRegistry,

		// Market data plumbing
		ProvideConnectors,
		ProvideCalendar,
		ProvideManager,

		// Use cases
		ProvideMarketData,
		ProvideQuant,
		ProvideTickProcessor,
		ProvideTickStream,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,
		ProvideRefreshQueue,
		ProvideScheduler,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
