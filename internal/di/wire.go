//go:build wireinject
// +build wireinject

package di

import (
	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/config"
	"SentiTrade/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSentimentStore,
		ProvideObservationArchive,
		ProvideSnapshotStore,
		ProvidePositionRepository,
		ProvideTradeRepository,
		ProvideConfigSource,
		ProvideTradePublisher,

		// Market data and execution
		ProvidePriceBook,
		ProvidePriceSource,
		ProvideBroker,
		ProvidePriceCollector,

		// Use cases
		usecase.NewSymbolLocks,
		ProvideConfigStore,
		ProvideSentimentAggregator,
		ProvidePositionTracker,
		ProvideTradeExecutor,
		ProvideReconciler,
		ProvideCycleRunner,
		ProvideBotController,
		ProvideSentimentService,
		ProvideTradingService,
		ProvideObservationsHandler,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
