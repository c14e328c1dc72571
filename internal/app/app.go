package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	PlanLoader usecase.ReleasePlanLoader
	Selector   usecase.ContractSelector

	// Use cases
	RunRelease      *usecase.RunRelease
	ResolveContract *usecase.ResolveContract
	SyncManifest    *usecase.SyncManifest
	ShowChannel     *usecase.ShowChannel
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	planLoader usecase.ReleasePlanLoader,
	selector usecase.ContractSelector,
	runRelease *usecase.RunRelease,
	resolveContract *usecase.ResolveContract,
	syncManifest *usecase.SyncManifest,
	showChannel *usecase.ShowChannel,
) (*App, error) {
	return &App{
		Config:          cfg,
		Log:             log,
		PlanLoader:      planLoader,
		Selector:        selector,
		RunRelease:      runRelease,
		ResolveContract: resolveContract,
		SyncManifest:    syncManifest,
		ShowChannel:     showChannel,
	}, nil
}
