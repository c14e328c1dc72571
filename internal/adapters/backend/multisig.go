package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
	"golang.org/x/sync/errgroup"
)

// ownerFunding is the balance given to impersonated owners so they can pay gas
var ownerFunding = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

// MultisigSimulated executes a batch through a Safe on a fork by
// impersonating enough owners to reach the threshold.
type MultisigSimulated struct {
	channel   models.MultisigSimulatedChannel
	env       models.Environment
	chain     usecase.ChainClient
	fork      usecase.ForkController
	safe      *bindings.Safe
	multisend *bindings.MultiSend
	log       *slog.Logger
}

// NewMultisigSimulated creates a simulated multisig backend
func NewMultisigSimulated(
	channel models.MultisigSimulatedChannel,
	env models.Environment,
	chain usecase.ChainClient,
	fork usecase.ForkController,
	log *slog.Logger,
) *MultisigSimulated {
	return &MultisigSimulated{
		channel:   channel,
		env:       env,
		chain:     chain,
		fork:      fork,
		safe:      bindings.NewSafe(),
		multisend: bindings.NewMultiSend(),
		log:       log.With("component", "backend", "channel", models.ChannelMultisigSimulated),
	}
}

// Channel returns the channel kind
func (m *MultisigSimulated) Channel() models.ChannelKind {
	return models.ChannelMultisigSimulated
}

// Execute aggregates the effects into one MultiSend delegatecall, collects
// threshold-1 approvals from owners other than the executor and executes
// the Safe transaction from the executor.
func (m *MultisigSimulated) Execute(ctx context.Context, effects []models.Effect) (*models.ExecutionResult, error) {
	if m.env != models.EnvironmentFork {
		return nil, fmt.Errorf("simulated multisig in %s environment: %w", m.env, domain.ErrChannelUnavailable)
	}

	payload, err := m.multisend.Encode(m.channel.MultiSend, effects)
	if err != nil {
		return nil, err
	}

	nonce, err := m.readUint(ctx, m.safe.PackNonce(), m.safe.UnpackNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to read safe nonce: %w", err)
	}

	threshold := m.channel.Threshold
	onchain, err := m.readUint(ctx, m.safe.PackGetThreshold(), m.safe.UnpackGetThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to read safe threshold: %w", err)
	}
	if onchain.Sign() <= 0 || !onchain.IsInt64() {
		return nil, fmt.Errorf("safe %s reports threshold %s: %w", m.channel.Safe.Hex(), onchain, domain.ErrQuorumNotReached)
	}
	if int(onchain.Int64()) != threshold {
		m.log.Warn("configured threshold differs from the safe", "configured", threshold, "safe", onchain)
		threshold = int(onchain.Int64())
	}

	tx := bindings.SafeTx{
		To:        m.channel.MultiSend,
		Value:     new(big.Int),
		Data:      payload.Calldata,
		Operation: uint8(models.OperationDelegateCall),
		Nonce:     nonce,
	}
	safeTxHash, err := m.transactionHash(ctx, tx)
	if err != nil {
		return nil, err
	}
	m.log.Info("prepared safe transaction",
		"safe", m.channel.Safe.Hex(),
		"safeTxHash", safeTxHash.Hex(),
		"payload", payload.Hash.Hex(),
		"effects", len(effects))

	approvers := lo.Filter(m.channel.Owners, func(owner common.Address, _ int) bool {
		return owner != m.channel.Executor
	})
	if threshold-1 < len(approvers) {
		approvers = approvers[:max(threshold-1, 0)]
	}

	approved, hashes, approveErr := m.collectApprovals(ctx, approvers, safeTxHash)

	// the executor approves implicitly by sending execTransaction
	signers := append([]common.Address{m.channel.Executor}, approved...)
	if len(signers) < threshold {
		err := fmt.Errorf("%d of %d approvals for %s: %w", len(signers), threshold, safeTxHash.Hex(), domain.ErrQuorumNotReached)
		if approveErr != nil {
			err = errors.Join(err, approveErr)
		}
		return nil, err
	}

	execData, err := m.safe.PackExecTransaction(tx, bindings.PreValidatedSignatures(signers))
	if err != nil {
		return nil, fmt.Errorf("failed to encode execTransaction: %w", err)
	}

	execHash, err := m.sendAs(ctx, m.channel.Executor, execData)
	if err != nil {
		return nil, domain.ExecutionFailedError{
			Channel: string(models.ChannelMultisigSimulated),
			Index:   -1,
			Target:  m.channel.Safe,
			TxHash:  execHash,
			Cause:   err,
		}
	}

	m.log.Info("safe transaction executed", "safeTxHash", safeTxHash.Hex(), "tx", execHash.Hex())
	return &models.ExecutionResult{
		Channel:    models.ChannelMultisigSimulated,
		Confirmed:  true,
		Effects:    len(effects),
		TxHashes:   append(hashes, execHash),
		SafeTxHash: &safeTxHash,
	}, nil
}

// collectApprovals has every approver call approveHash concurrently and
// returns the distinct owners whose approval was mined.
func (m *MultisigSimulated) collectApprovals(ctx context.Context, approvers []common.Address, safeTxHash common.Hash) ([]common.Address, []common.Hash, error) {
	data, err := m.safe.PackApproveHash(safeTxHash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode approveHash: %w", err)
	}

	var (
		mu       sync.Mutex
		approved = make(map[common.Address]common.Hash, len(approvers))
		g        errgroup.Group
	)
	for _, owner := range approvers {
		g.Go(func() error {
			hash, err := m.sendAs(ctx, owner, data)
			if err != nil {
				m.log.Error("approval failed", "owner", owner.Hex(), "error", err)
				return fmt.Errorf("approval from %s: %w", owner.Hex(), err)
			}
			mu.Lock()
			approved[owner] = hash
			mu.Unlock()
			m.log.Debug("hash approved", "owner", owner.Hex(), "tx", hash.Hex())
			return nil
		})
	}
	err = g.Wait()

	// keep owner order stable for logs and results
	owners := make([]common.Address, 0, len(approved))
	hashes := make([]common.Hash, 0, len(approved))
	for _, owner := range approvers {
		if hash, ok := approved[owner]; ok {
			owners = append(owners, owner)
			hashes = append(hashes, hash)
		}
	}
	return owners, hashes, err
}

// sendAs funds and impersonates account, sends data to the safe and waits for it to be mined
func (m *MultisigSimulated) sendAs(ctx context.Context, account common.Address, data []byte) (common.Hash, error) {
	if err := m.fork.SetBalance(ctx, account, ownerFunding); err != nil {
		return common.Hash{}, err
	}
	if err := m.fork.Impersonate(ctx, account); err != nil {
		return common.Hash{}, err
	}
	defer func() {
		if err := m.fork.StopImpersonating(context.WithoutCancel(ctx), account); err != nil {
			m.log.Warn("failed to stop impersonating", "account", account.Hex(), "error", err)
		}
	}()

	safe := m.channel.Safe
	hash, err := m.chain.SendTransaction(ctx, usecase.TxRequest{From: account, To: &safe, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := m.chain.WaitMined(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, domain.ErrReverted
	}
	return hash, nil
}

func (m *MultisigSimulated) transactionHash(ctx context.Context, tx bindings.SafeTx) (common.Hash, error) {
	data, err := m.safe.PackGetTransactionHash(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode getTransactionHash: %w", err)
	}
	safe := m.channel.Safe
	out, err := m.chain.Call(ctx, usecase.TxRequest{To: &safe, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to compute safe transaction hash: %w", err)
	}
	return m.safe.UnpackGetTransactionHash(out)
}

func (m *MultisigSimulated) readUint(ctx context.Context, data []byte, unpack func([]byte) (*big.Int, error)) (*big.Int, error) {
	safe := m.channel.Safe
	out, err := m.chain.Call(ctx, usecase.TxRequest{To: &safe, Data: data})
	if err != nil {
		return nil, err
	}
	return unpack(out)
}

var _ usecase.ExecutionBackend = (*MultisigSimulated)(nil)
