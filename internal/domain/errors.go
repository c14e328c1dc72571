package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for release operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrNotImplemented is returned when an effect kind is not supported yet
	ErrNotImplemented = errors.New("not implemented")

	// ErrNotProxied is returned when an upgrade is requested for a contract without a proxy
	ErrNotProxied = errors.New("contract is not behind a proxy")

	// ErrQuorumNotReached is returned when a multisig execution lacks approvals
	ErrQuorumNotReached = errors.New("multisig quorum not reached")

	// ErrUpgradeNotConfirmed is returned when the on-chain implementation does not match an upgrade record
	ErrUpgradeNotConfirmed = errors.New("upgrade not confirmed on-chain")

	// ErrReverted is returned when a mined transaction has a failed status
	ErrReverted = errors.New("transaction reverted")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrChannelUnavailable is returned when an execution channel can't run in the current environment
	ErrChannelUnavailable = errors.New("execution channel unavailable")
)

// UnknownContractError is returned when the registry can't resolve a logical contract name
type UnknownContractError struct {
	Name        string
	Suggestions []string
}

func (e UnknownContractError) Error() string {
	msg := fmt.Sprintf("unknown contract %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e UnknownContractError) Unwrap() error {
	return ErrNotFound
}

// StorageLayoutIncompatibleError aborts an upgrade batch
type StorageLayoutIncompatibleError struct {
	Contract string
	Details  []string
}

func (e StorageLayoutIncompatibleError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("storage layout of %s is incompatible with the deployed implementation", e.Contract)
	}
	return fmt.Sprintf("storage layout of %s is incompatible with the deployed implementation:\n  - %s",
		e.Contract, strings.Join(e.Details, "\n  - "))
}

// LibraryLinkMissingError is returned when an artifact references a library with no address
type LibraryLinkMissingError struct {
	Contract string
	Library  string
}

func (e LibraryLinkMissingError) Error() string {
	return fmt.Sprintf("contract %s requires library %s but no address was provided", e.Contract, e.Library)
}

// ExecutionFailedError wraps an on-chain failure reported by an execution backend.
// Index is the position of the failing effect, or -1 when an aggregated call failed.
type ExecutionFailedError struct {
	Channel string
	Index   int
	Target  common.Address
	TxHash  common.Hash
	Cause   error
}

func (e ExecutionFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s execution failed", e.Channel)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at effect #%d (target %s)", e.Index, e.Target.Hex())
	}
	if e.TxHash != (common.Hash{}) {
		fmt.Fprintf(&b, " in tx %s", e.TxHash.Hex())
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e ExecutionFailedError) Unwrap() error {
	return e.Cause
}
