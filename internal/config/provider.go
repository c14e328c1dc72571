package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
)

// ConfigFileName is the project config file, looked up in the project root
const ConfigFileName = "treb-release.toml"

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	foundryConfig, err := loadFoundryConfig(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load foundry config: %w", err)
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		FoundryProfile: getString(v, "profile"),
		Fork:           v.GetBool("fork"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		DryRun:         v.GetBool("dry_run"),
		Timeout:        v.GetDuration("timeout"),
		Signer: config.SignerConfig{
			Address:    getString(v, "signer.address"),
			PrivateKey: getString(v, "signer.private_key"),
		},
		Safe: config.SafeConfig{
			Address:   getString(v, "safe.address"),
			MultiSend: getString(v, "safe.multisend"),
			Executor:  getString(v, "safe.executor"),
			Threshold: v.GetInt("safe.threshold"),
			Owners:    expandAll(v.GetStringSlice("safe.owners")),
		},
		Relay: config.RelayConfig{
			URL:       getString(v, "relay.url"),
			APIKey:    getString(v, "relay.api_key"),
			APISecret: getString(v, "relay.api_secret"),
		},
		Storage: config.StorageConfig{
			AllowUnknownLayout: v.GetBool("storage.allow_unknown_layout"),
		},
		FoundryConfig: foundryConfig,
	}

	if err := resolveSigner(&cfg.Signer); err != nil {
		return nil, err
	}

	if networkName := getString(v, "network"); networkName != "" {
		resolver := NewNetworkResolver(foundryConfig)
		network, err := resolver.Resolve(networkName, getString(v, "rpc_url"), v.GetUint64("chain_id"))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve network %s: %w", networkName, err)
		}
		cfg.Network = network
	}

	cfg.ManifestPath, cfg.PublicManifestPath = manifestPaths(v, cfg)
	return cfg, nil
}

// resolveSigner derives the signer address from its private key
func resolveSigner(signer *config.SignerConfig) error {
	if signer.PrivateKey == "" {
		return nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signer.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signer.private_key: %w", err)
	}
	derived := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if signer.Address != "" && !strings.EqualFold(signer.Address, derived) {
		return fmt.Errorf("signer.address %s does not match signer.private_key (%s)", signer.Address, derived)
	}
	signer.Address = derived
	return nil
}

// manifestPaths returns the manifest written by this run and the read-only
// public manifest. On a fork the run writes to <network>-fork.json and
// falls back to the live network's <network>.json.
func manifestPaths(v *viper.Viper, cfg *config.RuntimeConfig) (string, string) {
	manifest := getString(v, "manifest")
	public := getString(v, "public_manifest")

	if cfg.Network != nil {
		dir := filepath.Join(cfg.ProjectRoot, "deployments")
		if manifest == "" {
			name := cfg.Network.Name
			if cfg.Fork {
				name += "-fork"
			}
			manifest = filepath.Join(dir, name+".json")
		}
		if public == "" && cfg.Fork {
			live := filepath.Join(dir, cfg.Network.Name+".json")
			if _, err := os.Stat(live); err == nil {
				public = live
			}
		}
	}

	return absolute(cfg.ProjectRoot, manifest), absolute(cfg.ProjectRoot, public)
}

func absolute(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// getString reads a string setting, expanding ${VAR} references so secrets
// can stay in .env files
func getString(v *viper.Viper, key string) string {
	return os.ExpandEnv(v.GetString(key))
}

func expandAll(values []string) []string {
	for i, value := range values {
		values[i] = os.ExpandEnv(value)
	}
	return values
}

// FindProjectRoot walks up from current directory to find foundry.toml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "foundry.toml")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Foundry project (foundry.toml not found)")
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance. Settings are read
// from flags, TREB_* environment variables and treb-release.toml, in that
// order of precedence.
func SetupViper(projectRoot string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".toml"))
	v.SetConfigType("toml")
	v.AddConfigPath(projectRoot)

	v.SetEnvPrefix("TREB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("profile", "default")
	v.SetDefault("timeout", "5m")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("project_root", projectRoot)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	return v, nil
}
