package models

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// ProxySuffix marks the manifest entry of a contract's proxy
	ProxySuffix = "_Proxy"
	// TestPrefix marks records that only exist in local/test environments
	TestPrefix = "Test"
)

// Manifest is the persisted deployment record of one network
type Manifest struct {
	Network   string                    `json:"network"`
	ChainID   uint64                    `json:"chainId"`
	Contracts map[string]*ManifestEntry `json:"contracts"`
}

// ManifestEntry is the deployment record of a single logical contract (or its proxy)
type ManifestEntry struct {
	Address common.Address  `json:"address"`
	ABI     json.RawMessage `json:"abi"`

	// Implementation is only set on proxied contracts
	Implementation *common.Address        `json:"implementation,omitempty"`
	ContractName   string                 `json:"contractName,omitempty"`
	StorageLayout  json.RawMessage        `json:"storageLayout,omitempty"`
	History        []ImplementationChange `json:"history,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// ImplementationChange is one recorded proxy upgrade
type ImplementationChange struct {
	Previous       common.Address `json:"previous"`
	Implementation common.Address `json:"implementation"`
	RecordedAt     time.Time      `json:"recordedAt"`
}

// NewManifest returns an empty manifest
func NewManifest(network string, chainID uint64) *Manifest {
	return &Manifest{
		Network:   network,
		ChainID:   chainID,
		Contracts: make(map[string]*ManifestEntry),
	}
}

// ProxyEntryName returns the manifest key of a contract's proxy
func ProxyEntryName(name string) string {
	return name + ProxySuffix
}

// TestEntryName returns the manifest key of a contract's test deployment
func TestEntryName(name string) string {
	return TestPrefix + name
}

// Clone returns a deep copy of the entry
func (e *ManifestEntry) Clone() *ManifestEntry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Implementation != nil {
		impl := *e.Implementation
		clone.Implementation = &impl
	}
	clone.ABI = append(json.RawMessage(nil), e.ABI...)
	clone.StorageLayout = append(json.RawMessage(nil), e.StorageLayout...)
	clone.History = append([]ImplementationChange(nil), e.History...)
	return &clone
}
