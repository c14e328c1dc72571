package models

// Environment is the kind of chain a migration run targets
type Environment string

const (
	EnvironmentLocal Environment = "local"
	EnvironmentFork  Environment = "fork"
	EnvironmentLive  Environment = "live"
)

// Local development chain IDs (anvil/hardhat defaults)
var localChainIDs = map[uint64]bool{
	31337: true,
	1337:  true,
}

// EnvironmentFlags are the inputs to environment detection
type EnvironmentFlags struct {
	ChainID uint64
	// Fork is set when the local node is a fork of a live network
	Fork bool
}

// DetectEnvironment derives the environment from the run flags.
// A fork always wins over the chain ID, since forks keep the upstream ID.
func DetectEnvironment(flags EnvironmentFlags) Environment {
	if flags.Fork {
		return EnvironmentFork
	}
	if localChainIDs[flags.ChainID] {
		return EnvironmentLocal
	}
	return EnvironmentLive
}

// AllowsTestRecords reports whether Test-prefixed manifest records may be resolved
func (e Environment) AllowsTestRecords() bool {
	return e == EnvironmentLocal
}
