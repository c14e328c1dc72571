package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ShowChannelResult describes where a release would go
type ShowChannelResult struct {
	Network            string
	ChainID            uint64
	Environment        models.Environment
	Channel            models.ExecutionChannel
	ManifestPath       string
	PublicManifestPath string

	// SelectionError is set when no channel can be built for the environment
	SelectionError error
}

// ShowChannel is a use case for showing the selected execution channel. It
// reports the same selection the execution backend was built from.
type ShowChannel struct {
	cfg       *config.RuntimeConfig
	selection *models.ChannelSelection
}

// NewShowChannel creates a new ShowChannel use case
func NewShowChannel(cfg *config.RuntimeConfig, selection *models.ChannelSelection) *ShowChannel {
	return &ShowChannel{cfg: cfg, selection: selection}
}

// Run describes the network and the channel selected for this run
func (uc *ShowChannel) Run(_ context.Context) (*ShowChannelResult, error) {
	if uc.selection == nil {
		return nil, fmt.Errorf("no channel selection for this run")
	}

	result := &ShowChannelResult{
		Environment:        uc.selection.Environment,
		Channel:            uc.selection.Channel,
		SelectionError:     uc.selection.Err,
		ManifestPath:       uc.cfg.ManifestPath,
		PublicManifestPath: uc.cfg.PublicManifestPath,
	}
	if uc.cfg.Network != nil {
		result.Network = uc.cfg.Network.Name
		result.ChainID = uc.cfg.Network.ChainID
	}
	return result, nil
}
