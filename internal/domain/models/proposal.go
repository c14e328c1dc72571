package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Proposal is an aggregated call submitted to the relay for multisig approval
type Proposal struct {
	Title             string
	Description       string
	Network           string
	Target            common.Address
	Value             *big.Int
	Payload           []byte
	ApprovingMultisig common.Address
	Operation         Operation
	// IdempotencyKey is unique per submission; a retry is a new proposal
	IdempotencyKey string
}
