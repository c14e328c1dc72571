package backend

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// RelayedProposal submits the aggregated batch to the approval service.
// Nothing is executed on-chain by this backend.
type RelayedProposal struct {
	channel     models.RelayedProposalChannel
	relay       usecase.RelayClient
	multisend   *bindings.MultiSend
	title       string
	description string
	log         *slog.Logger
}

// NewRelayedProposal creates a relayed proposal backend
func NewRelayedProposal(channel models.RelayedProposalChannel, relay usecase.RelayClient, log *slog.Logger) *RelayedProposal {
	return &RelayedProposal{
		channel:   channel,
		relay:     relay,
		multisend: bindings.NewMultiSend(),
		log:       log.With("component", "backend", "channel", models.ChannelRelayedProposal),
	}
}

// Channel returns the channel kind
func (r *RelayedProposal) Channel() models.ChannelKind {
	return models.ChannelRelayedProposal
}

// LabelProposal sets the title and description of the next submissions
func (r *RelayedProposal) LabelProposal(title, description string) {
	r.title = title
	r.description = description
}

// Execute submits one proposal for the batch. Every call uses a fresh
// idempotency key, so calling it again creates a second proposal.
func (r *RelayedProposal) Execute(ctx context.Context, effects []models.Effect) (*models.ExecutionResult, error) {
	payload, err := r.multisend.Encode(r.channel.MultiSend, effects)
	if err != nil {
		return nil, err
	}

	title := r.title
	if title == "" {
		title = fmt.Sprintf("Release of %d effects", len(effects))
	}

	proposal := models.Proposal{
		Title:             title,
		Description:       r.describe(effects),
		Network:           r.channel.Relay.Network,
		Target:            payload.Target,
		Value:             new(big.Int),
		Payload:           payload.Calldata,
		ApprovingMultisig: r.channel.Safe,
		Operation:         models.OperationDelegateCall,
		IdempotencyKey:    uuid.NewString(),
	}

	r.log.Info("submitting proposal",
		"title", proposal.Title,
		"safe", proposal.ApprovingMultisig.Hex(),
		"payload", payload.Hash.Hex(),
		"key", proposal.IdempotencyKey)

	submission, err := r.relay.SubmitProposal(ctx, proposal)
	if err != nil {
		return nil, fmt.Errorf("failed to submit proposal: %w", err)
	}

	return &models.ExecutionResult{
		Channel:   models.ChannelRelayedProposal,
		Confirmed: false,
		Effects:   len(effects),
		Proposal:  submission,
	}, nil
}

func (r *RelayedProposal) describe(effects []models.Effect) string {
	var b strings.Builder
	if r.description != "" {
		b.WriteString(r.description)
		b.WriteString("\n\n")
	}
	for i, effect := range effects {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(effect))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(effect models.Effect) string {
	if effect.Description != "" {
		return effect.Description
	}
	return effect.Target.Hex()
}

var (
	_ usecase.ExecutionBackend = (*RelayedProposal)(nil)
	_ usecase.ProposalLabeler  = (*RelayedProposal)(nil)
)
