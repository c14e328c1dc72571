package config

// FoundryConfig represents the parts of foundry.toml the release tooling reads
type FoundryConfig struct {
	Profile      map[string]ProfileConfig `toml:"profile"`
	RpcEndpoints map[string]string        `toml:"rpc_endpoints"`
}

// ProfileConfig represents a profile's foundry configuration
type ProfileConfig struct {
	SrcPath     string   `toml:"src,omitempty"`
	OutPath     string   `toml:"out,omitempty"`
	Libraries   []string `toml:"libraries,omitempty"`
	ExtraOutput []string `toml:"extra_output,omitempty"`
}

// OutDir returns the artifacts directory of a profile, falling back to "out"
func (c *FoundryConfig) OutDir(profile string) string {
	if c != nil {
		if p, ok := c.Profile[profile]; ok && p.OutPath != "" {
			return p.OutPath
		}
		if p, ok := c.Profile["default"]; ok && p.OutPath != "" {
			return p.OutPath
		}
	}
	return "out"
}
