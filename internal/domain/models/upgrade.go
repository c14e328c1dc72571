package models

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// UpgradeRequest asks for a new implementation of a proxied logical contract
type UpgradeRequest struct {
	// Name is the logical contract name, e.g. "SeniorPool"
	Name string `yaml:"name"`

	// Contract is the artifact to deploy; defaults to Name
	Contract        string            `yaml:"contract,omitempty"`
	ConstructorArgs []string          `yaml:"constructorArgs,omitempty"`
	Libraries       map[string]string `yaml:"libraries,omitempty"`
	Init            *CallSpec         `yaml:"init,omitempty"`

	// InitData is passed to changeImplementation alongside the new address
	InitData []byte `yaml:"-"`
}

// ArtifactName returns the contract artifact to deploy
func (r UpgradeRequest) ArtifactName() string {
	if r.Contract != "" {
		return r.Contract
	}
	return r.Name
}

// UpgradeRecord captures the implementation swap of one proxy
type UpgradeRecord struct {
	Name                   string          `json:"name"`
	Proxy                  common.Address  `json:"proxy"`
	PreviousImplementation common.Address  `json:"previousImplementation"`
	NewImplementation      common.Address  `json:"newImplementation"`
	ContractName           string          `json:"contractName"`
	ABI                    json.RawMessage `json:"abi,omitempty"`
	StorageLayout          json.RawMessage `json:"storageLayout,omitempty"`
}

// ImplementationRef identifies an implementation for storage layout validation
type ImplementationRef struct {
	ContractName  string
	Address       common.Address
	StorageLayout json.RawMessage
}

// DeployRequest asks the deploy capability for a new contract instance
type DeployRequest struct {
	ContractName    string
	ConstructorArgs []string
	Libraries       map[string]common.Address
}

// DeployedContract is the result of a deployment
type DeployedContract struct {
	ContractName         string
	Address              common.Address
	ABI                  json.RawMessage
	StorageLayout        json.RawMessage
	DeployedBytecodeSize int
	TxHash               common.Hash
}
