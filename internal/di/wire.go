//go:build wireinject
// +build wireinject

package di

import (
	"IncluScore/pkg/config"
	"IncluScore/pkg/server"

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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,

		// Repositories
		ProvideHistoryStore,
		ProvideModelStore,
		ProvideScoreCache,
		ProvideOutcomePipeline,
		ProvideOutcomePublisher,

		// Domain services
		ProvideCodec,
		ProvideTranslator,
		ProvideTrainConfig,
		ProvideLifecycleManager,
		ProvideExplainer,
		ProvideSimulator,

		// Use cases
		ProvideScoringEngine,
		ProvideOutcomeHandler,
		ProvideRetrainQueue,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
