package models

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// ContractSource records where a logical contract record was found
type ContractSource string

const (
	SourceManifest     ContractSource = "manifest"
	SourceTestManifest ContractSource = "test-manifest"
	SourcePublic       ContractSource = "public-registry"
)

// LogicalContract is a stable contract name resolved to its concrete on-chain addresses
type LogicalContract struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`

	// ProxyAddress is nil for contracts that are not proxied
	ProxyAddress *common.Address `json:"proxyAddress,omitempty"`

	// Implementation is read from the proxy's implementation slot on every resolve
	Implementation common.Address `json:"implementation"`

	ABI           json.RawMessage `json:"abi,omitempty"`
	ProxyABI      json.RawMessage `json:"proxyAbi,omitempty"`
	ContractName  string          `json:"contractName,omitempty"`
	StorageLayout json.RawMessage `json:"storageLayout,omitempty"`
	Source        ContractSource  `json:"source"`
}

// IsProxied reports whether the contract sits behind a proxy
func (c *LogicalContract) IsProxied() bool {
	return c.ProxyAddress != nil
}
