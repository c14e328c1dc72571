package bindings

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
)

// ProxyMetaData contains the upgrade surface of the protocol's proxies.
var ProxyMetaData = bind.MetaData{
	ABI: `[
		{"type":"function","name":"changeImplementation","stateMutability":"nonpayable","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]},
		{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"type":"event","name":"Upgraded","anonymous":false,"inputs":[{"name":"implementation","type":"address","indexed":true}]}
	]`,
	ID: "Proxy",
}

// Proxy is a Go binding around an upgradeable proxy.
type Proxy struct {
	abi abi.ABI
}

// NewProxy creates a new instance of Proxy.
func NewProxy() *Proxy {
	parsed, err := ProxyMetaData.ParseABI()
	if err != nil {
		panic(errors.New("invalid ABI: " + err.Error()))
	}
	return &Proxy{abi: *parsed}
}

// PackChangeImplementation is the Go binding used to pack the parameters required for calling
// the contract method changeImplementation.
//
// Solidity: function changeImplementation(address newImplementation, bytes data)
func (p *Proxy) PackChangeImplementation(newImplementation common.Address, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return p.abi.Pack("changeImplementation", newImplementation, data)
}
