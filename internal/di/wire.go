//go:build wireinject
// +build wireinject

package di

import (
	"CrashCast/pkg/config"
	"CrashCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideCollector,
		ProvideLogger,
		ProvideMetrics,

		// Core engine
		ProvideCategories,
		ProvideDetector,
		ProvideRuleTable,
		ProvideGenerator,
		ProvideCalibrator,
		ProvideForecaster,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,
		ProvideQueue,

		// Repositories
		ProvideEventPublisher,
		ProvideHistoryStore,

		// Handlers
		ProvideHub,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
