package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// RunRelease performs one migration run: upgrades, plan calls, a single
// flush of the deferred batch and, once confirmed, the manifest update.
type RunRelease struct {
	upgrader  *UpgradeContracts
	resolver  *ResolveContract
	ledger    *EffectLedger
	writer    *RecordUpgrade
	multisend *bindings.MultiSend
	progress  ProgressSink
	log       *slog.Logger
}

// RunReleaseParams contains parameters for running a release
type RunReleaseParams struct {
	Plan *models.ReleasePlan

	// DryRun deploys and validates but never executes the batch. The
	// deployments are real transactions on the target network.
	DryRun bool
}

// RunReleaseResult contains the result of a release run
type RunReleaseResult struct {
	Title    string
	BatchID  string
	DryRun   bool
	Upgrades []models.UpgradeRecord
	Effects  []models.Effect

	// PayloadHash is the hash of the aggregated multisend call, identical
	// for every channel that would receive this batch
	PayloadHash *common.Hash

	Execution *models.ExecutionResult
	Records   []RecordResult

	// PendingSync lists contracts whose manifest entry waits for the
	// proposal to be executed
	PendingSync []string
}

// NewRunRelease creates a new release runner
func NewRunRelease(
	upgrader *UpgradeContracts,
	resolver *ResolveContract,
	ledger *EffectLedger,
	writer *RecordUpgrade,
	progress ProgressSink,
	log *slog.Logger,
) *RunRelease {
	return &RunRelease{
		upgrader:  upgrader,
		resolver:  resolver,
		ledger:    ledger,
		writer:    writer,
		multisend: bindings.NewMultiSend(),
		progress:  progress,
		log:       log.With("component", "release"),
	}
}

// Execute runs the release plan
func (r *RunRelease) Execute(ctx context.Context, params RunReleaseParams) (*RunReleaseResult, error) {
	plan := params.Plan
	if plan == nil {
		return nil, fmt.Errorf("release plan is required")
	}

	result := &RunReleaseResult{
		Title:   plan.Title,
		BatchID: r.ledger.BatchID(),
		DryRun:  params.DryRun,
	}

	r.ledger.Label(plan.Title, plan.Description)

	requests, err := r.upgradeRequests(plan.Upgrades)
	if err != nil {
		return nil, err
	}

	// Calls are encoded up front so a bad call aborts before any deployment
	calls, err := r.callEffects(ctx, plan.Calls)
	if err != nil {
		return nil, err
	}

	var records map[string]models.UpgradeRecord
	if len(requests) > 0 {
		records, err = r.upgrader.Upgrade(ctx, requests)
		if err != nil {
			return nil, err
		}
	}
	for _, req := range requests {
		result.Upgrades = append(result.Upgrades, records[req.Name])
	}

	if err := r.ledger.Add(calls...); err != nil {
		return nil, err
	}

	result.Effects = r.ledger.Pending()
	if len(result.Effects) > 0 {
		payload, err := r.multisend.Encode(common.Address{}, result.Effects)
		if err != nil {
			return nil, fmt.Errorf("failed to encode batch payload: %w", err)
		}
		result.PayloadHash = &payload.Hash
	}

	if params.DryRun {
		r.log.Info("dry run, batch not executed", "batch", result.BatchID, "effects", len(result.Effects))
		return result, nil
	}

	execution, err := r.ledger.ExecuteDeferred(ctx)
	if err != nil {
		return result, err
	}
	result.Execution = execution

	if !execution.Confirmed {
		for _, req := range requests {
			result.PendingSync = append(result.PendingSync, req.Name)
		}
		if len(result.PendingSync) > 0 {
			r.progress.Info("Manifest unchanged until the proposal is executed; run sync afterwards")
		}
		return result, nil
	}

	for _, req := range requests {
		record, err := r.writer.Record(ctx, req.Name, records[req.Name])
		if err != nil {
			return result, err
		}
		result.Records = append(result.Records, *record)
	}

	return result, nil
}

// upgradeRequests copies the planned upgrades with their init calls encoded
func (r *RunRelease) upgradeRequests(planned []models.UpgradeRequest) ([]models.UpgradeRequest, error) {
	requests := make([]models.UpgradeRequest, 0, len(planned))
	for _, req := range planned {
		if req.Name == "" {
			return nil, fmt.Errorf("upgrade without a contract name")
		}
		if req.Init != nil {
			data, err := bindings.EncodeCall(req.Init.Signature, req.Init.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode init call of %s: %w", req.Name, err)
			}
			req.InitData = data
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// callEffects turns the plan's calls into deferred effects
func (r *RunRelease) callEffects(ctx context.Context, calls []models.CallSpec) ([]models.Effect, error) {
	effects := make([]models.Effect, 0, len(calls))
	for i, call := range calls {
		target, err := r.callTarget(ctx, call.Target)
		if err != nil {
			return nil, fmt.Errorf("call #%d (%s): %w", i, call.Signature, err)
		}
		data, err := bindings.EncodeCall(call.Signature, call.Args)
		if err != nil {
			return nil, fmt.Errorf("call #%d: %w", i, err)
		}
		value, err := bindings.ParseValue(call.Value)
		if err != nil {
			return nil, fmt.Errorf("call #%d (%s): %w", i, call.Signature, err)
		}

		description := call.Description
		if description == "" {
			description = fmt.Sprintf("%s.%s", call.Target, call.Signature)
		}
		effects = append(effects, models.Effect{
			Target:      target,
			Data:        data,
			Value:       value,
			Kind:        models.EffectDeferred,
			Description: description,
		})
	}
	return effects, nil
}

func (r *RunRelease) callTarget(ctx context.Context, ref string) (common.Address, error) {
	if ref == "" {
		return common.Address{}, fmt.Errorf("missing call target")
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	contract, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address, nil
}
