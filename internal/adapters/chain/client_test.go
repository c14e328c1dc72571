package chain

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newMockRPCServer creates a test HTTP server that responds to JSON-RPC requests
func newMockRPCServer(t *testing.T, handler func(req rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode RPC request: %v", err)
			return
		}
		resp := handler(req)
		resp.Jsonrpc = "2.0"
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode RPC response: %v", err)
		}
	}))
}

func newTestClient(t *testing.T, server *httptest.Server, privateKey string) *Client {
	t.Helper()
	cfg := &config.RuntimeConfig{
		Network: &config.Network{Name: "test", RPCURL: server.URL},
		Signer:  config.SignerConfig{PrivateKey: privateKey},
	}
	c, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	c.poll = 10 * time.Millisecond
	t.Cleanup(c.Close)
	return c
}

func param[T any](t *testing.T, req rpcRequest, i int) T {
	t.Helper()
	require.Greater(t, len(req.Params), i)
	var v T
	require.NoError(t, json.Unmarshal(req.Params[i], &v))
	return v
}

func TestNewClient_RequiresRPCURL(t *testing.T) {
	_, err := NewClient(&config.RuntimeConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no RPC URL")
}

func TestNewClient_InvalidPrivateKey(t *testing.T) {
	cfg := &config.RuntimeConfig{
		Network: &config.Network{RPCURL: "http://127.0.0.1:1"},
		Signer:  config.SignerConfig{PrivateKey: "0xnothex"},
	}
	_, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signer private key")
}

func TestChainID(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "eth_chainId", req.Method)
		return rpcResponse{Result: "0x7a69"}
	})
	defer server.Close()

	id, err := newTestClient(t, server, "").ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), id)
}

func TestConnect(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Result: "0x1"}
	})
	c := newTestClient(t, server, "")

	t.Run("accepts any chain when unset", func(t *testing.T) {
		id, err := c.Connect(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
	})

	t.Run("matching chain", func(t *testing.T) {
		id, err := c.Connect(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
	})

	t.Run("mismatch", func(t *testing.T) {
		_, err := c.Connect(context.Background(), 8453)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 8453, got 1")
	})
}

func TestImplementationOf_ReadsEIP1967Slot(t *testing.T) {
	proxy := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	impl := common.HexToAddress("0x1111111111111111111111111111111111111111")

	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "eth_getStorageAt", req.Method)
		assert.Equal(t, proxy, param[common.Address](t, req, 0))
		assert.Equal(t, ImplementationSlot, param[common.Hash](t, req, 1))
		assert.Equal(t, "latest", param[string](t, req, 2))
		return rpcResponse{Result: common.BytesToHash(impl.Bytes()).Hex()}
	})
	defer server.Close()

	got, err := newTestClient(t, server, "").ImplementationOf(context.Background(), proxy)
	require.NoError(t, err)
	assert.Equal(t, impl, got)
}

func TestImplementationOf_EmptySlot(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Result: common.Hash{}.Hex()}
	})
	defer server.Close()

	_, err := newTestClient(t, server, "").ImplementationOf(context.Background(), common.HexToAddress("0xaa"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotProxied)
}

func TestImplementationOf_RPCError(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Error: &rpcError{Code: -32000, Message: "header not found"}}
	})
	defer server.Close()

	_, err := newTestClient(t, server, "").ImplementationOf(context.Background(), common.HexToAddress("0xaa"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header not found")
}

func TestSendTransaction_UnsignedUsesNodeAccount(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	hash := common.HexToHash("0xabcdef")

	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "eth_sendTransaction", req.Method)
		args := param[map[string]string](t, req, 0)
		assert.Equal(t, strings.ToLower(from.Hex()), strings.ToLower(args["from"]))
		assert.Equal(t, strings.ToLower(to.Hex()), strings.ToLower(args["to"]))
		assert.Equal(t, "0x1234", args["data"])
		assert.Equal(t, "0x5", args["value"])
		return rpcResponse{Result: hash.Hex()}
	})
	defer server.Close()

	got, err := newTestClient(t, server, "").SendTransaction(context.Background(), usecase.TxRequest{
		From:  from,
		To:    &to,
		Value: big.NewInt(5),
		Data:  []byte{0x12, 0x34},
	})
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestSendTransaction_SignsForConfiguredSigner(t *testing.T) {
	// anvil account #0
	const key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	signer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	var mu sync.Mutex
	var methods []string
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		mu.Lock()
		methods = append(methods, req.Method)
		mu.Unlock()

		switch req.Method {
		case "eth_chainId":
			return rpcResponse{Result: "0x7a69"}
		case "eth_getTransactionCount":
			assert.Equal(t, signer, param[common.Address](t, req, 0))
			return rpcResponse{Result: "0x3"}
		case "eth_maxPriorityFeePerGas":
			return rpcResponse{Result: "0x3b9aca00"}
		case "eth_getBlockByNumber":
			return rpcResponse{Result: map[string]any{
				"parentHash":       common.Hash{}.Hex(),
				"sha3Uncles":       common.Hash{}.Hex(),
				"miner":            common.Address{}.Hex(),
				"stateRoot":        common.Hash{}.Hex(),
				"transactionsRoot": common.Hash{}.Hex(),
				"receiptsRoot":     common.Hash{}.Hex(),
				"logsBloom":        "0x" + strings.Repeat("00", 256),
				"difficulty":       "0x0",
				"number":           "0x10",
				"gasLimit":         "0x1c9c380",
				"gasUsed":          "0x0",
				"timestamp":        "0x0",
				"extraData":        "0x",
				"mixHash":          common.Hash{}.Hex(),
				"nonce":            "0x0000000000000000",
				"baseFeePerGas":    "0x7",
				"transactions":     []any{},
				"uncles":           []any{},
			}}
		case "eth_estimateGas":
			return rpcResponse{Result: "0x5208"}
		case "eth_sendRawTransaction":
			return rpcResponse{Result: common.HexToHash("0x01").Hex()}
		}
		t.Errorf("unexpected method %s", req.Method)
		return rpcResponse{Error: &rpcError{Code: -32601, Message: "method not found"}}
	})
	defer server.Close()

	c := newTestClient(t, server, key)
	require.Equal(t, signer, c.signer)

	hash, err := c.SendTransaction(context.Background(), usecase.TxRequest{From: signer, To: &to})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.Contains(t, methods, "eth_sendRawTransaction")
	assert.NotContains(t, methods, "eth_sendTransaction")
}

func TestWaitMined_PollsUntilReceipt(t *testing.T) {
	hash := common.HexToHash("0xfeed")
	calls := 0

	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)
		calls++
		if calls < 3 {
			return rpcResponse{Result: nil}
		}
		return rpcResponse{Result: map[string]any{
			"transactionHash":   hash.Hex(),
			"blockHash":         common.HexToHash("0x02").Hex(),
			"blockNumber":       "0x10",
			"transactionIndex":  "0x0",
			"cumulativeGasUsed": "0x5208",
			"gasUsed":           "0x5208",
			"effectiveGasPrice": "0x1",
			"logsBloom":         "0x" + strings.Repeat("00", 256),
			"logs":              []any{},
			"status":            "0x1",
			"type":              "0x2",
		}}
	})
	defer server.Close()

	receipt, err := newTestClient(t, server, "").WaitMined(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, 3, calls)
}

func TestWaitMined_ContextCancelled(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Result: nil}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server, "").WaitMined(ctx, common.HexToHash("0xfeed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForkCheats(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000d0")
	var methods []string

	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		methods = append(methods, req.Method)
		assert.Equal(t, account, param[common.Address](t, req, 0))
		if req.Method == "anvil_setBalance" {
			assert.Equal(t, "0xde0b6b3a7640000", param[string](t, req, 1))
		}
		return rpcResponse{Result: nil}
	})
	defer server.Close()

	c := newTestClient(t, server, "")
	ctx := context.Background()
	require.NoError(t, c.Impersonate(ctx, account))
	require.NoError(t, c.SetBalance(ctx, account, big.NewInt(1e18)))
	require.NoError(t, c.StopImpersonating(ctx, account))

	assert.Equal(t, []string{
		"anvil_impersonateAccount",
		"anvil_setBalance",
		"anvil_stopImpersonatingAccount",
	}, methods)
}
