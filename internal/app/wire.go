//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-release/internal/adapters"
	"github.com/trebuchet-org/treb-release/internal/config"
	"github.com/trebuchet-org/treb-release/internal/logging"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// InitApp creates a fully wired App instance. The returned cleanup closes
// the chain connection.
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, func(), error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewResolveContract,
		usecase.NewEffectLedger,
		usecase.NewUpgradeContracts,
		usecase.NewRecordUpgrade,
		usecase.NewRunRelease,
		usecase.NewSyncManifest,
		usecase.NewShowChannel,

		// App
		NewApp,
	)
	return nil, nil, nil
}
