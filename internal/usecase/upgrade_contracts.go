package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// UpgradeContracts deploys new implementations for proxied contracts, checks
// every one of them for storage layout compatibility and only then queues the
// changeImplementation effects on the ledger.
type UpgradeContracts struct {
	resolver  *ResolveContract
	deployer  Deployer
	validator StorageValidator
	ledger    *EffectLedger
	proxy     *bindings.Proxy
	progress  ProgressSink
	log       *slog.Logger
}

// NewUpgradeContracts creates a new upgrade coordinator
func NewUpgradeContracts(
	resolver *ResolveContract,
	deployer Deployer,
	validator StorageValidator,
	ledger *EffectLedger,
	progress ProgressSink,
	log *slog.Logger,
) *UpgradeContracts {
	return &UpgradeContracts{
		resolver:  resolver,
		deployer:  deployer,
		validator: validator,
		ledger:    ledger,
		proxy:     bindings.NewProxy(),
		progress:  progress,
		log:       log.With("component", "upgrader"),
	}
}

// pendingUpgrade is an upgrade that passed validation but has no effect yet
type pendingUpgrade struct {
	request models.UpgradeRequest
	record  models.UpgradeRecord
}

// Upgrade processes the requests in order. Any failure aborts the whole
// batch before a single effect reaches the ledger.
func (u *UpgradeContracts) Upgrade(ctx context.Context, requests []models.UpgradeRequest) (map[string]models.UpgradeRecord, error) {
	seen := make(map[string]bool, len(requests))
	for _, req := range requests {
		if seen[req.Name] {
			return nil, fmt.Errorf("contract %s requested more than once", req.Name)
		}
		seen[req.Name] = true
	}

	pending := make([]pendingUpgrade, 0, len(requests))
	for i, req := range requests {
		u.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "upgrade",
			Current: i + 1,
			Total:   len(requests),
			Message: fmt.Sprintf("Preparing upgrade of %s", req.Name),
			Spinner: true,
		})

		record, err := u.prepare(ctx, req)
		if err != nil {
			u.log.Error("upgrade batch aborted", "contract", req.Name, "error", err)
			return nil, err
		}
		pending = append(pending, pendingUpgrade{request: req, record: *record})
	}

	effects := make([]models.Effect, 0, len(pending))
	records := make(map[string]models.UpgradeRecord, len(pending))
	for _, p := range pending {
		data, err := u.proxy.PackChangeImplementation(p.record.NewImplementation, p.request.InitData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode changeImplementation for %s: %w", p.record.Name, err)
		}
		effects = append(effects, models.Effect{
			Target:      p.record.Proxy,
			Data:        data,
			Kind:        models.EffectDeferred,
			Description: fmt.Sprintf("%s.changeImplementation(%s)", p.record.Name, p.record.NewImplementation.Hex()),
		})
		records[p.record.Name] = p.record
	}

	if err := u.ledger.Add(effects...); err != nil {
		return nil, err
	}

	u.progress.Info(fmt.Sprintf("Queued %d implementation changes", len(effects)))
	return records, nil
}

// prepare resolves, deploys and validates a single upgrade
func (u *UpgradeContracts) prepare(ctx context.Context, req models.UpgradeRequest) (*models.UpgradeRecord, error) {
	current, err := u.resolver.Resolve(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if !current.IsProxied() {
		return nil, fmt.Errorf("%s: %w", req.Name, domain.ErrNotProxied)
	}

	libraries := make(map[string]common.Address, len(req.Libraries))
	for lib, ref := range req.Libraries {
		addr, err := u.libraryAddress(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("library %s of %s: %w", lib, req.Name, err)
		}
		libraries[lib] = addr
	}

	deployed, err := u.deployer.Deploy(ctx, models.DeployRequest{
		ContractName:    req.ArtifactName(),
		ConstructorArgs: req.ConstructorArgs,
		Libraries:       libraries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy implementation of %s: %w", req.Name, err)
	}
	u.log.Info("deployed implementation",
		"contract", req.Name,
		"artifact", deployed.ContractName,
		"address", deployed.Address.Hex(),
		"size", deployed.DeployedBytecodeSize)

	oldContractName := current.ContractName
	if oldContractName == "" {
		oldContractName = req.ArtifactName()
	}
	err = u.validator.CheckCompatible(ctx,
		models.ImplementationRef{
			ContractName:  oldContractName,
			Address:       current.Implementation,
			StorageLayout: current.StorageLayout,
		},
		models.ImplementationRef{
			ContractName:  deployed.ContractName,
			Address:       deployed.Address,
			StorageLayout: deployed.StorageLayout,
		},
	)
	if err != nil {
		return nil, forContract(req.Name, err)
	}

	return &models.UpgradeRecord{
		Name:                   req.Name,
		Proxy:                  *current.ProxyAddress,
		PreviousImplementation: current.Implementation,
		NewImplementation:      deployed.Address,
		ContractName:           deployed.ContractName,
		ABI:                    deployed.ABI,
		StorageLayout:          deployed.StorageLayout,
	}, nil
}

// forContract reports a layout incompatibility under the requested contract
// name, keeping the artifact that was checked in the details
func forContract(name string, err error) error {
	var incompatible domain.StorageLayoutIncompatibleError
	if !errors.As(err, &incompatible) || incompatible.Contract == name {
		return err
	}
	details := append([]string{"new implementation " + incompatible.Contract}, incompatible.Details...)
	return domain.StorageLayoutIncompatibleError{Contract: name, Details: details}
}

// libraryAddress accepts either a literal address or a logical contract name
func (u *UpgradeContracts) libraryAddress(ctx context.Context, ref string) (common.Address, error) {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	lib, err := u.resolver.Resolve(ctx, ref)
	if err != nil {
		return common.Address{}, err
	}
	return lib.Address, nil
}
