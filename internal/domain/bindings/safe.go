package bindings

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
)

// SafeMetaData contains the subset of the Safe (v1.3+) interface used to approve and execute batches.
var SafeMetaData = bind.MetaData{
	ABI: `[
		{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
		{"type":"function","name":"approvedHashes","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"hash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"approveHash","stateMutability":"nonpayable","inputs":[{"name":"hashToApprove","type":"bytes32"}],"outputs":[]},
		{"type":"function","name":"getTransactionHash","stateMutability":"view","inputs":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},
			{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},
			{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"_nonce","type":"uint256"}
		],"outputs":[{"name":"","type":"bytes32"}]},
		{"type":"function","name":"execTransaction","stateMutability":"payable","inputs":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},
			{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},
			{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"signatures","type":"bytes"}
		],"outputs":[{"name":"success","type":"bool"}]}
	]`,
	ID: "Safe",
}

// SafeTx is the Safe transaction dispatched by execTransaction. Gas refund
// fields are always zero: the executor pays its own gas.
type SafeTx struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation uint8
	Nonce     *big.Int
}

// Safe is a Go binding around a Safe multisig.
type Safe struct {
	abi abi.ABI
}

// NewSafe creates a new instance of Safe.
func NewSafe() *Safe {
	parsed, err := SafeMetaData.ParseABI()
	if err != nil {
		panic(errors.New("invalid ABI: " + err.Error()))
	}
	return &Safe{abi: *parsed}
}

// PackNonce packs a call to nonce().
func (s *Safe) PackNonce() []byte {
	data, err := s.abi.Pack("nonce")
	if err != nil {
		panic(err)
	}
	return data
}

// UnpackNonce unpacks the result of nonce().
func (s *Safe) UnpackNonce(data []byte) (*big.Int, error) {
	return s.unpackUint(data, "nonce")
}

// PackGetThreshold packs a call to getThreshold().
func (s *Safe) PackGetThreshold() []byte {
	data, err := s.abi.Pack("getThreshold")
	if err != nil {
		panic(err)
	}
	return data
}

// UnpackGetThreshold unpacks the result of getThreshold().
func (s *Safe) UnpackGetThreshold(data []byte) (*big.Int, error) {
	return s.unpackUint(data, "getThreshold")
}

// PackApproveHash packs a call to approveHash(hash).
func (s *Safe) PackApproveHash(hash common.Hash) ([]byte, error) {
	return s.abi.Pack("approveHash", [32]byte(hash))
}

// PackGetTransactionHash packs a call to getTransactionHash for tx.
func (s *Safe) PackGetTransactionHash(tx SafeTx) ([]byte, error) {
	zero := new(big.Int)
	return s.abi.Pack("getTransactionHash",
		tx.To, valueOrZero(tx.Value), tx.Data, tx.Operation,
		zero, zero, zero,
		common.Address{}, common.Address{},
		valueOrZero(tx.Nonce),
	)
}

// UnpackGetTransactionHash unpacks the result of getTransactionHash.
func (s *Safe) UnpackGetTransactionHash(data []byte) (common.Hash, error) {
	out, err := s.abi.Unpack("getTransactionHash", data)
	if err != nil {
		return common.Hash{}, err
	}
	hash, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected getTransactionHash output %T", out[0])
	}
	return common.Hash(hash), nil
}

// PackExecTransaction packs a call to execTransaction for tx with the given signatures.
func (s *Safe) PackExecTransaction(tx SafeTx, signatures []byte) ([]byte, error) {
	zero := new(big.Int)
	return s.abi.Pack("execTransaction",
		tx.To, valueOrZero(tx.Value), tx.Data, tx.Operation,
		zero, zero, zero,
		common.Address{}, common.Address{},
		signatures,
	)
}

func (s *Safe) unpackUint(data []byte, method string) (*big.Int, error) {
	out, err := s.abi.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output %T", method, out[0])
	}
	return value, nil
}

// PreValidatedSignatures builds the Safe "approved hash" signatures (v = 1)
// for the given owners, sorted by ascending owner address as the Safe requires.
func PreValidatedSignatures(owners []common.Address) []byte {
	sorted := make([]common.Address, len(owners))
	copy(sorted, owners)
	sortAddresses(sorted)

	signatures := make([]byte, 0, len(sorted)*65)
	for _, owner := range sorted {
		var sig [65]byte
		copy(sig[12:32], owner.Bytes()) // r = owner
		sig[64] = 1                     // v = 1, s = 0
		signatures = append(signatures, sig[:]...)
	}
	return signatures
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
