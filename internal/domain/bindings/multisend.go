package bindings

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// MultiSendMetaData contains the MultiSend / MultiSendCallOnly interface.
var MultiSendMetaData = bind.MetaData{
	ABI: `[{"type":"function","name":"multiSend","stateMutability":"payable","inputs":[{"name":"transactions","type":"bytes"}],"outputs":[]}]`,
	ID:  "MultiSend",
}

// MultiSendPayload is the aggregated call shared by every multisig backend
type MultiSendPayload struct {
	// Target is the MultiSend contract the Safe delegatecalls into
	Target common.Address
	// Transactions is the packed leg encoding passed to multiSend
	Transactions []byte
	// Calldata is the complete multiSend(bytes) call
	Calldata []byte
	// Hash is keccak256(Calldata), used to compare payloads across channels
	Hash common.Hash
}

// MultiSend is a Go binding around the MultiSend contract.
type MultiSend struct {
	abi abi.ABI
}

// NewMultiSend creates a new instance of MultiSend.
func NewMultiSend() *MultiSend {
	parsed, err := MultiSendMetaData.ParseABI()
	if err != nil {
		panic(errors.New("invalid ABI: " + err.Error()))
	}
	return &MultiSend{abi: *parsed}
}

// Encode aggregates effects into one multiSend call. Each leg is
// operation (1 byte) | to (20) | value (32) | data length (32) | data,
// concatenated in effect order.
func (m *MultiSend) Encode(target common.Address, effects []models.Effect) (*MultiSendPayload, error) {
	if len(effects) == 0 {
		return nil, errors.New("multisend requires at least one effect")
	}

	var packed bytes.Buffer
	for _, effect := range effects {
		packed.WriteByte(byte(models.OperationCall))
		packed.Write(effect.Target.Bytes())
		packed.Write(math.U256Bytes(effect.ValueOrZero()))
		packed.Write(math.U256Bytes(new(big.Int).SetInt64(int64(len(effect.Data)))))
		packed.Write(effect.Data)
	}

	calldata, err := m.abi.Pack("multiSend", packed.Bytes())
	if err != nil {
		return nil, err
	}

	return &MultiSendPayload{
		Target:       target,
		Transactions: packed.Bytes(),
		Calldata:     calldata,
		Hash:         crypto.Keccak256Hash(calldata),
	}, nil
}

// TotalValue sums the native value of all effects
func TotalValue(effects []models.Effect) *big.Int {
	total := new(big.Int)
	for _, effect := range effects {
		total.Add(total, effect.ValueOrZero())
	}
	return total
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})
}
