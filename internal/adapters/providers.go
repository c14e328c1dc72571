package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/wire"
	"github.com/trebuchet-org/treb-release/internal/adapters/backend"
	"github.com/trebuchet-org/treb-release/internal/adapters/chain"
	"github.com/trebuchet-org/treb-release/internal/adapters/forge"
	"github.com/trebuchet-org/treb-release/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-release/internal/adapters/plan"
	"github.com/trebuchet-org/treb-release/internal/adapters/repository/manifest"
	"github.com/trebuchet-org/treb-release/internal/adapters/storage"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

const connectTimeout = 10 * time.Second

// ProvideChainClient dials the configured network and checks its chain ID
func ProvideChainClient(cfg *config.RuntimeConfig, log *slog.Logger) (*chain.Client, func(), error) {
	client, err := chain.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	chainID, err := client.Connect(ctx, cfg.Network.ChainID)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	cfg.Network.ChainID = chainID

	return client, client.Close, nil
}

// ProvideManifestStore opens the manifest of the configured network
func ProvideManifestStore(cfg *config.RuntimeConfig) (*manifest.FileStore, error) {
	if cfg.Network == nil {
		return nil, fmt.Errorf("no network selected, use --network or set network in treb-release.toml")
	}
	return manifest.NewFileStore(cfg.ManifestPath, cfg.Network.Name, cfg.Network.ChainID)
}

// ProvidePublicStore opens the read-only live manifest, if configured
func ProvidePublicStore(cfg *config.RuntimeConfig) (*manifest.PublicStore, error) {
	var chainID uint64
	if cfg.Network != nil {
		chainID = cfg.Network.ChainID
	}
	return manifest.NewPublicStore(cfg.PublicManifestPath, chainID)
}

// ProvidePlanLoader creates the release plan loader
func ProvidePlanLoader(cfg *config.RuntimeConfig, log *slog.Logger) *plan.Loader {
	return plan.NewLoader(cfg.ProjectRoot, log)
}

// ProvideChannelSelection selects the execution channel once per run
func ProvideChannelSelection(cfg *config.RuntimeConfig) (*models.ChannelSelection, error) {
	return cfg.SelectChannel()
}

// ProvideExecutionBackend builds the backend of the selected channel. When
// selection failed the returned backend refuses to execute, so read-only
// commands keep working.
func ProvideExecutionBackend(
	selection *models.ChannelSelection,
	client usecase.ChainClient,
	fork usecase.ForkController,
	log *slog.Logger,
) (usecase.ExecutionBackend, error) {
	if selection.Err != nil {
		log.Debug("no execution channel", "environment", selection.Environment, "error", selection.Err)
		return &backend.Unavailable{Env: selection.Environment, Reason: selection.Err}, nil
	}

	return backend.New(selection.Channel, backend.Deps{
		Env:   selection.Environment,
		Chain: client,
		Fork:  fork,
		Log:   log,
	})
}

// ChainSet provides the JSON-RPC chain client
var ChainSet = wire.NewSet(
	ProvideChainClient,
	wire.Bind(new(usecase.ChainClient), new(*chain.Client)),
	wire.Bind(new(usecase.ForkController), new(*chain.Client)),
)

// ManifestSet provides the manifest stores
var ManifestSet = wire.NewSet(
	ProvideManifestStore,
	wire.Bind(new(usecase.ManifestStore), new(*manifest.FileStore)),

	ProvidePublicStore,
	wire.Bind(new(usecase.PublicRegistry), new(*manifest.PublicStore)),
)

// ForgeSet provides Foundry artifact access and deployments
var ForgeSet = wire.NewSet(
	forge.NewArtifactReader,
	wire.Bind(new(usecase.ArtifactReader), new(*forge.ArtifactReader)),

	forge.NewDeployer,
	wire.Bind(new(usecase.Deployer), new(*forge.Deployer)),

	storage.NewValidator,
	wire.Bind(new(usecase.StorageValidator), new(*storage.Validator)),
)

// ReleaseSet provides plan loading and effect execution
var ReleaseSet = wire.NewSet(
	ProvidePlanLoader,
	wire.Bind(new(usecase.ReleasePlanLoader), new(*plan.Loader)),

	ProvideChannelSelection,
	ProvideExecutionBackend,
)

// InteractiveSet provides operator prompts
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.ContractSelector), new(*interactive.SelectorAdapter)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	ChainSet,
	ManifestSet,
	ForgeSet,
	ReleaseSet,
	InteractiveSet,
)
