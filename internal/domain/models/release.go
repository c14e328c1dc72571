package models

// CallSpec is a human-written contract call: a function signature and its
// arguments as strings, e.g. setAddress(uint256,address) ["7", "0x..."].
type CallSpec struct {
	Target      string   `yaml:"target,omitempty"`
	Signature   string   `yaml:"signature"`
	Args        []string `yaml:"args,omitempty"`
	Value       string   `yaml:"value,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// ReleasePlan is the input of one migration run
type ReleasePlan struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description,omitempty"`
	Upgrades    []UpgradeRequest `yaml:"upgrades,omitempty"`
	Calls       []CallSpec       `yaml:"calls,omitempty"`
}

// ContractArtifact is a compiled contract as read from the build output
type ContractArtifact struct {
	ContractName     string
	ABI              []byte
	Bytecode         string
	DeployedBytecode string
	StorageLayout    []byte
	// LinkReferences maps "file:Library" to placeholder positions
	LinkReferences map[string]map[string][]LinkReference
}

// LinkReference is the location of a library placeholder in bytecode
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}
