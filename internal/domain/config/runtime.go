package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot        string
	ManifestPath       string
	PublicManifestPath string // live-network manifest used as fork fallback
	FoundryProfile     string

	// Network settings
	Network *Network
	Fork    bool

	// Execution settings
	Debug          bool
	NonInteractive bool
	DryRun         bool
	Timeout        time.Duration

	Signer  SignerConfig
	Safe    SafeConfig
	Relay   RelayConfig
	Storage StorageConfig

	// Resolved configurations
	FoundryConfig *FoundryConfig
}

// Network represents network configuration
type Network struct {
	Name    string `json:"name"`
	RPCURL  string `json:"rpcUrl"`
	ChainID uint64 `json:"chainId"`
}

// SignerConfig is the key used by the direct channel and for deployments
type SignerConfig struct {
	Address    string
	PrivateKey string //nolint:gosec // loaded from env, never persisted
}

// SafeConfig describes the approving multisig
type SafeConfig struct {
	Address   string
	MultiSend string
	Executor  string
	Threshold int
	Owners    []string
}

// RelayConfig holds relay/approval service credentials
type RelayConfig struct {
	URL       string
	APIKey    string
	APISecret string //nolint:gosec // loaded from env, never persisted
}

// StorageConfig tunes the storage layout validator
type StorageConfig struct {
	AllowUnknownLayout bool
}

// Environment derives the execution environment from the network settings
func (c *RuntimeConfig) Environment() models.Environment {
	flags := models.EnvironmentFlags{Fork: c.Fork}
	if c.Network != nil {
		flags.ChainID = c.Network.ChainID
	}
	return models.DetectEnvironment(flags)
}

// ChannelSettings converts the configured addresses into channel settings
func (c *RuntimeConfig) ChannelSettings() (models.ChannelSettings, error) {
	var s models.ChannelSettings
	var err error

	if s.Signer, err = optionalAddress("signer.address", c.Signer.Address); err != nil {
		return s, err
	}
	if s.Safe, err = optionalAddress("safe.address", c.Safe.Address); err != nil {
		return s, err
	}
	if s.MultiSend, err = optionalAddress("safe.multisend", c.Safe.MultiSend); err != nil {
		return s, err
	}
	if s.Executor, err = optionalAddress("safe.executor", c.Safe.Executor); err != nil {
		return s, err
	}
	for i, owner := range c.Safe.Owners {
		addr, err := optionalAddress(fmt.Sprintf("safe.owners[%d]", i), owner)
		if err != nil {
			return s, err
		}
		s.Owners = append(s.Owners, addr)
	}
	s.Threshold = c.Safe.Threshold
	s.Relay = models.RelayCredentials{
		URL:       c.Relay.URL,
		APIKey:    c.Relay.APIKey,
		APISecret: c.Relay.APISecret,
	}
	if c.Network != nil {
		s.Relay.Network = c.Network.Name
	}
	return s, nil
}

// SelectChannel performs the channel selection for a run. Invalid settings
// are returned as an error; an environment without a usable channel is
// reported in the selection.
func (c *RuntimeConfig) SelectChannel() (*models.ChannelSelection, error) {
	settings, err := c.ChannelSettings()
	if err != nil {
		return nil, err
	}
	env := c.Environment()
	channel, err := models.SelectChannel(env, settings)
	return &models.ChannelSelection{Environment: env, Channel: channel, Err: err}, nil
}

func optionalAddress(key, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %w: %q", key, domain.ErrInvalidAddress, value)
	}
	return common.HexToAddress(value), nil
}
