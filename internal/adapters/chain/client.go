package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ImplementationSlot is the EIP-1967 implementation slot,
// bytes32(uint256(keccak256("eip1967.proxy.implementation")) - 1)
var ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

const defaultPollInterval = time.Second

// Client implements usecase.ChainClient and usecase.ForkController over JSON-RPC
type Client struct {
	rpc    *rpc.Client
	eth    *ethclient.Client
	key    *ecdsa.PrivateKey
	signer common.Address
	poll   time.Duration
	log    *slog.Logger
}

// NewClient creates a chain client for the configured network. Transactions
// from the configured signer are signed locally; any other sender (unlocked
// or impersonated accounts) goes through eth_sendTransaction.
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) (*Client, error) {
	if cfg.Network == nil || cfg.Network.RPCURL == "" {
		return nil, fmt.Errorf("no RPC URL configured for the network")
	}

	rpcClient, err := rpc.Dial(cfg.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	c := &Client{
		rpc:  rpcClient,
		eth:  ethclient.NewClient(rpcClient),
		poll: defaultPollInterval,
		log:  log.With("component", "chain"),
	}

	if cfg.Signer.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Signer.PrivateKey, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("invalid signer private key: %w", err)
		}
		c.key = key
		c.signer = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Close releases the underlying RPC connection
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID returns the chain ID reported by the node
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return id.Uint64(), nil
}

// Connect verifies that the node serves the expected chain. An expected
// chain ID of 0 accepts whatever the node reports.
func (c *Client) Connect(ctx context.Context, expected uint64) (uint64, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if expected != 0 && chainID != expected {
		return 0, fmt.Errorf("chain ID mismatch: expected %d, got %d", expected, chainID)
	}
	c.log.Debug("connected", "chainId", chainID)
	return chainID, nil
}

// ImplementationOf reads the EIP-1967 implementation slot of proxy at the latest block
func (c *Client) ImplementationOf(ctx context.Context, proxy common.Address) (common.Address, error) {
	raw, err := c.eth.StorageAt(ctx, proxy, ImplementationSlot, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read implementation slot of %s: %w", proxy.Hex(), err)
	}
	impl := common.BytesToAddress(raw)
	if impl == (common.Address{}) {
		return common.Address{}, fmt.Errorf("proxy %s has an empty implementation slot: %w", proxy.Hex(), domain.ErrNotProxied)
	}
	return impl, nil
}

// Call executes a read-only call at the latest block
func (c *Client) Call(ctx context.Context, req usecase.TxRequest) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
	}, nil)
}

// SendTransaction submits a transaction and returns its hash without waiting
func (c *Client) SendTransaction(ctx context.Context, req usecase.TxRequest) (common.Hash, error) {
	if c.key != nil && req.From == c.signer {
		return c.sendSigned(ctx, req)
	}

	args := sendTxArgs{
		From:  req.From,
		To:    req.To,
		Value: (*hexutil.Big)(req.Value),
		Data:  hexutil.Bytes(req.Data),
	}
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction from %s failed: %w", req.From.Hex(), err)
	}
	c.log.Debug("sent transaction", "from", req.From.Hex(), "hash", hash.Hex())
	return hash, nil
}

// sendTxArgs are the eth_sendTransaction parameters
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (c *Client) sendSigned(ctx context.Context, req usecase.TxRequest) (common.Hash, error) {
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain ID: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.signer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce of %s: %w", c.signer.Hex(), err)
	}
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.signer,
		To:    req.To,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.log.Debug("sent signed transaction", "from", c.signer.Hex(), "nonce", nonce, "hash", signed.Hash().Hex())
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash until it is available or ctx ends
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt of %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Impersonate lets the node accept unsigned transactions from account
func (c *Client) Impersonate(ctx context.Context, account common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_impersonateAccount", account); err != nil {
		return fmt.Errorf("failed to impersonate %s: %w", account.Hex(), err)
	}
	return nil
}

// StopImpersonating reverts Impersonate
func (c *Client) StopImpersonating(ctx context.Context, account common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", account); err != nil {
		return fmt.Errorf("failed to stop impersonating %s: %w", account.Hex(), err)
	}
	return nil
}

// SetBalance sets the native balance of account
func (c *Client) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_setBalance", account, (*hexutil.Big)(wei)); err != nil {
		return fmt.Errorf("failed to set balance of %s: %w", account.Hex(), err)
	}
	return nil
}

// Ensure the client implements the interfaces
var (
	_ usecase.ChainClient    = (*Client)(nil)
	_ usecase.ForkController = (*Client)(nil)
)
