package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
)

const chainIDTimeout = 10 * time.Second

// NetworkResolver resolves network names to RPC endpoints and chain IDs
type NetworkResolver struct {
	foundryConfig *config.FoundryConfig
	fetchChainID  func(ctx context.Context, rpcURL string) (uint64, error)
}

// NewNetworkResolver creates a new network resolver
func NewNetworkResolver(foundryConfig *config.FoundryConfig) *NetworkResolver {
	return &NetworkResolver{
		foundryConfig: foundryConfig,
		fetchChainID:  fetchChainID,
	}
}

// Resolve finds the RPC URL of networkName, from rpcURL when given, then
// foundry.toml [rpc_endpoints], then the <NAME>_RPC_URL environment
// variable. The chain ID is asked from the node unless chainID is set.
func (r *NetworkResolver) Resolve(networkName, rpcURL string, chainID uint64) (*config.Network, error) {
	if rpcURL == "" && r.foundryConfig != nil {
		rpcURL = r.foundryConfig.RpcEndpoints[networkName]
	}
	if rpcURL == "" {
		rpcURL = os.Getenv(RPCEnvVarName(networkName))
	}
	if rpcURL == "" {
		return nil, fmt.Errorf("network '%s' not found in foundry.toml [rpc_endpoints] and %s is not set",
			networkName, RPCEnvVarName(networkName))
	}

	if chainID == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), chainIDTimeout)
		defer cancel()

		fetched, err := r.fetchChainID(ctx, rpcURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chain ID: %w", err)
		}
		chainID = fetched
	}

	return &config.Network{
		Name:    networkName,
		RPCURL:  rpcURL,
		ChainID: chainID,
	}, nil
}

// RPCEnvVarName is the conventional env var holding a network's RPC URL,
// e.g. celo-sepolia -> CELO_SEPOLIA_RPC_URL
func RPCEnvVarName(networkName string) string {
	name := strings.ToUpper(networkName)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return name + "_RPC_URL"
}

func fetchChainID(ctx context.Context, rpcURL string) (uint64, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}
