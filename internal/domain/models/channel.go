package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// ChannelKind names an execution channel variant
type ChannelKind string

const (
	ChannelDirect            ChannelKind = "direct"
	ChannelMultisigSimulated ChannelKind = "multisig-simulated"
	ChannelRelayedProposal   ChannelKind = "relayed-proposal"
)

// ExecutionChannel is a closed set of variants: DirectChannel,
// MultisigSimulatedChannel and RelayedProposalChannel.
type ExecutionChannel interface {
	Kind() ChannelKind
	isExecutionChannel()
}

// DirectChannel executes every effect from a single authorized signer
type DirectChannel struct {
	Signer common.Address
}

// MultisigSimulatedChannel collects approvals from locally controllable owners on a fork
type MultisigSimulatedChannel struct {
	Safe      common.Address
	MultiSend common.Address
	Executor  common.Address
	Threshold int
	Owners    []common.Address
}

// RelayedProposalChannel submits the aggregated call to an external approval service
type RelayedProposalChannel struct {
	Safe      common.Address
	MultiSend common.Address
	Relay     RelayCredentials
}

// RelayCredentials configures access to the relay/approval service
type RelayCredentials struct {
	URL       string
	APIKey    string
	APISecret string
	Network   string
}

func (DirectChannel) Kind() ChannelKind            { return ChannelDirect }
func (MultisigSimulatedChannel) Kind() ChannelKind { return ChannelMultisigSimulated }
func (RelayedProposalChannel) Kind() ChannelKind   { return ChannelRelayedProposal }

func (DirectChannel) isExecutionChannel()            {}
func (MultisigSimulatedChannel) isExecutionChannel() {}
func (RelayedProposalChannel) isExecutionChannel()   {}

// ChannelSettings holds everything needed to build any channel variant
type ChannelSettings struct {
	Signer    common.Address
	Safe      common.Address
	MultiSend common.Address
	Executor  common.Address
	Threshold int
	Owners    []common.Address
	Relay     RelayCredentials
}

// ChannelSelection is the channel chosen for a run. Err is set when no
// channel could be built for the environment; Channel is nil then.
type ChannelSelection struct {
	Environment Environment
	Channel     ExecutionChannel
	Err         error
}

// SelectChannel picks the execution channel for an environment:
// local -> direct, fork -> simulated multisig, live -> relayed proposal.
func SelectChannel(env Environment, s ChannelSettings) (ExecutionChannel, error) {
	switch env {
	case EnvironmentLocal:
		if s.Signer == (common.Address{}) {
			return nil, fmt.Errorf("direct channel requires a signer address")
		}
		return DirectChannel{Signer: s.Signer}, nil

	case EnvironmentFork:
		if s.Safe == (common.Address{}) {
			return nil, fmt.Errorf("multisig channel requires a safe address")
		}
		if s.MultiSend == (common.Address{}) {
			return nil, fmt.Errorf("multisig channel requires a multisend address")
		}
		owners := lo.Uniq(s.Owners)
		if s.Threshold < 1 {
			return nil, fmt.Errorf("multisig threshold must be at least 1, got %d", s.Threshold)
		}
		if len(owners) < s.Threshold {
			return nil, fmt.Errorf("multisig threshold %d exceeds the %d configured owners", s.Threshold, len(owners))
		}
		executor := s.Executor
		if executor == (common.Address{}) {
			executor = owners[0]
		}
		if !lo.Contains(owners, executor) {
			return nil, fmt.Errorf("executor %s is not a safe owner", executor.Hex())
		}
		return MultisigSimulatedChannel{
			Safe:      s.Safe,
			MultiSend: s.MultiSend,
			Executor:  executor,
			Threshold: s.Threshold,
			Owners:    owners,
		}, nil

	case EnvironmentLive:
		if s.Safe == (common.Address{}) {
			return nil, fmt.Errorf("relayed proposals require a safe address")
		}
		if s.MultiSend == (common.Address{}) {
			return nil, fmt.Errorf("relayed proposals require a multisend address")
		}
		if s.Relay.URL == "" {
			return nil, fmt.Errorf("relayed proposals require a relay URL")
		}
		return RelayedProposalChannel{Safe: s.Safe, MultiSend: s.MultiSend, Relay: s.Relay}, nil
	}

	return nil, fmt.Errorf("unknown environment %q", env)
}
