package models

import "github.com/ethereum/go-ethereum/common"

// Operation is the call type used when a Safe dispatches a transaction
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

func (o Operation) String() string {
	if o == OperationDelegateCall {
		return "delegateCall"
	}
	return "call"
}

// ProposalSubmission is returned when a proposal was accepted by the relay.
// Acceptance says nothing about on-chain execution.
type ProposalSubmission struct {
	Submitted  bool   `json:"submitted"`
	ProposalID string `json:"proposalId"`
	URL        string `json:"url,omitempty"`
}

// ExecutionResult describes what a backend did with a batch
type ExecutionResult struct {
	Channel ChannelKind `json:"channel"`

	// Confirmed is true only when every effect is known to have landed on-chain
	Confirmed  bool                `json:"confirmed"`
	Effects    int                 `json:"effects"`
	TxHashes   []common.Hash       `json:"txHashes,omitempty"`
	SafeTxHash *common.Hash        `json:"safeTxHash,omitempty"`
	Proposal   *ProposalSubmission `json:"proposal,omitempty"`
}
