package backend

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Direct sends every effect as its own transaction from one signer
type Direct struct {
	channel models.DirectChannel
	chain   usecase.ChainClient
	log     *slog.Logger
}

// NewDirect creates a direct execution backend
func NewDirect(channel models.DirectChannel, chain usecase.ChainClient, log *slog.Logger) *Direct {
	return &Direct{
		channel: channel,
		chain:   chain,
		log:     log.With("component", "backend", "channel", models.ChannelDirect),
	}
}

// Channel returns the channel kind
func (d *Direct) Channel() models.ChannelKind {
	return models.ChannelDirect
}

// Execute sends the effects in order, waiting for each receipt. It stops at
// the first failure; transactions mined before it are not rolled back.
func (d *Direct) Execute(ctx context.Context, effects []models.Effect) (*models.ExecutionResult, error) {
	hashes := make([]common.Hash, 0, len(effects))

	for i, effect := range effects {
		target := effect.Target
		hash, err := d.chain.SendTransaction(ctx, usecase.TxRequest{
			From:  d.channel.Signer,
			To:    &target,
			Value: effect.ValueOrZero(),
			Data:  effect.Data,
		})
		if err != nil {
			return nil, d.fail(i, effect, common.Hash{}, err, hashes)
		}

		receipt, err := d.chain.WaitMined(ctx, hash)
		if err != nil {
			return nil, d.fail(i, effect, hash, err, hashes)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return nil, d.fail(i, effect, hash, domain.ErrReverted, hashes)
		}

		d.log.Info("effect executed", "index", i, "target", target.Hex(), "tx", hash.Hex())
		hashes = append(hashes, hash)
	}

	return &models.ExecutionResult{
		Channel:   models.ChannelDirect,
		Confirmed: true,
		Effects:   len(effects),
		TxHashes:  hashes,
	}, nil
}

func (d *Direct) fail(index int, effect models.Effect, hash common.Hash, cause error, landed []common.Hash) error {
	if len(landed) > 0 {
		hexes := make([]string, len(landed))
		for i, h := range landed {
			hexes[i] = h.Hex()
		}
		d.log.Warn("batch partially applied, earlier effects remain on-chain",
			"failed", index,
			"landed", len(landed),
			"txs", hexes)
	}
	return domain.ExecutionFailedError{
		Channel: string(models.ChannelDirect),
		Index:   index,
		Target:  effect.Target,
		TxHash:  hash,
		Cause:   cause,
	}
}

var _ usecase.ExecutionBackend = (*Direct)(nil)
