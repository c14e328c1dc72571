package forge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Deployer deploys Foundry artifacts with a plain creation transaction
type Deployer struct {
	artifacts usecase.ArtifactReader
	chain     usecase.ChainClient
	from      common.Address
	libraries map[string]common.Address
	log       *slog.Logger
}

// NewDeployer creates a deployer sending from the configured signer. Library
// addresses from the foundry profile are used when a request doesn't name them.
func NewDeployer(artifacts usecase.ArtifactReader, chain usecase.ChainClient, cfg *config.RuntimeConfig, log *slog.Logger) (*Deployer, error) {
	var from common.Address
	if cfg.Signer.Address != "" {
		if !common.IsHexAddress(cfg.Signer.Address) {
			return nil, fmt.Errorf("signer.address: %w: %q", domain.ErrInvalidAddress, cfg.Signer.Address)
		}
		from = common.HexToAddress(cfg.Signer.Address)
	}

	var profileLibraries []string
	if cfg.FoundryConfig != nil {
		profileLibraries = cfg.FoundryConfig.Profile[profileName(cfg.FoundryProfile)].Libraries
	}
	libraries, err := parseFoundryLibraries(profileLibraries)
	if err != nil {
		return nil, err
	}

	return &Deployer{
		artifacts: artifacts,
		chain:     chain,
		from:      from,
		libraries: libraries,
		log:       log.With("component", "deployer"),
	}, nil
}

func profileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// Deploy links, encodes and deploys req.ContractName
func (d *Deployer) Deploy(ctx context.Context, req models.DeployRequest) (*models.DeployedContract, error) {
	if d.from == (common.Address{}) {
		return nil, fmt.Errorf("no signer configured for deployments")
	}

	artifact, err := d.artifacts.Read(ctx, req.ContractName)
	if err != nil {
		return nil, err
	}

	libraries := make(map[string]common.Address, len(d.libraries)+len(req.Libraries))
	for name, addr := range d.libraries {
		libraries[name] = addr
	}
	for name, addr := range req.Libraries {
		libraries[name] = addr
	}

	linked, err := LinkBytecode(artifact.ContractName, artifact.Bytecode, artifact.LinkReferences, libraries)
	if err != nil {
		return nil, err
	}
	code, err := hexutil.Decode(linked)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode for %s: %w", artifact.ContractName, err)
	}

	args, err := encodeConstructorArgs(artifact.ABI, req.ConstructorArgs)
	if err != nil {
		return nil, fmt.Errorf("constructor of %s: %w", artifact.ContractName, err)
	}
	code = append(code, args...)

	hash, err := d.chain.SendTransaction(ctx, usecase.TxRequest{From: d.from, Data: code})
	if err != nil {
		return nil, fmt.Errorf("failed to send deployment of %s: %w", artifact.ContractName, err)
	}
	receipt, err := d.chain.WaitMined(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("deployment of %s in tx %s: %w", artifact.ContractName, hash.Hex(), domain.ErrReverted)
	}

	d.log.Debug("deployed", "contract", artifact.ContractName, "address", receipt.ContractAddress.Hex(), "tx", hash.Hex())

	return &models.DeployedContract{
		ContractName:         artifact.ContractName,
		Address:              receipt.ContractAddress,
		ABI:                  artifact.ABI,
		StorageLayout:        artifact.StorageLayout,
		DeployedBytecodeSize: len(strings.TrimPrefix(artifact.DeployedBytecode, "0x")) / 2,
		TxHash:               hash,
	}, nil
}

// LinkBytecode replaces library placeholders in bytecode. Libraries are
// looked up by "file:Name" first, then by "Name".
func LinkBytecode(contract, bytecode string, refs map[string]map[string][]models.LinkReference, libraries map[string]common.Address) (string, error) {
	if len(refs) == 0 {
		return bytecode, nil
	}

	code := []byte(strings.TrimPrefix(bytecode, "0x"))

	files := make([]string, 0, len(refs))
	for file := range refs {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		for lib, positions := range refs[file] {
			addr, ok := libraries[file+":"+lib]
			if !ok {
				addr, ok = libraries[lib]
			}
			if !ok {
				return "", domain.LibraryLinkMissingError{Contract: contract, Library: lib}
			}

			hexAddr := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
			for _, pos := range positions {
				start, end := pos.Start*2, (pos.Start+pos.Length)*2
				if pos.Length != common.AddressLength || end > len(code) {
					return "", fmt.Errorf("invalid link reference for %s in %s", lib, contract)
				}
				copy(code[start:end], hexAddr)
			}
		}
	}

	return "0x" + string(code), nil
}

func encodeConstructorArgs(abiJSON []byte, args []string) ([]byte, error) {
	if len(abiJSON) == 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("artifact has no ABI for %d arguments", len(args))
		}
		return nil, nil
	}

	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("invalid ABI: %w", err)
	}
	values, err := bindings.ConvertArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return parsed.Pack("", values...)
}

// parseFoundryLibraries reads foundry.toml "libraries" entries of the form
// "src/Lib.sol:Lib:0xaddress".
func parseFoundryLibraries(entries []string) (map[string]common.Address, error) {
	libraries := make(map[string]common.Address, len(entries)*2)
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || !common.IsHexAddress(parts[2]) {
			return nil, fmt.Errorf("invalid foundry library entry %q", entry)
		}
		addr := common.HexToAddress(parts[2])
		libraries[parts[0]+":"+parts[1]] = addr
		libraries[parts[1]] = addr
	}
	return libraries, nil
}

var _ usecase.Deployer = (*Deployer)(nil)
