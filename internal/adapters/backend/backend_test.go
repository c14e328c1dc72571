package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

var (
	safeAddr      = common.HexToAddress("0x5afe000000000000000000000000000000000001")
	multiSendAddr = common.HexToAddress("0x40A2aCCbd92BCA938b02010E17A5b8929b49130D")
	safeTxHash    = common.HexToHash("0x5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a")
	owners        = []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000a01"),
		common.HexToAddress("0x0000000000000000000000000000000000000a02"),
		common.HexToAddress("0x0000000000000000000000000000000000000a03"),
		common.HexToAddress("0x0000000000000000000000000000000000000a04"),
		common.HexToAddress("0x0000000000000000000000000000000000000a05"),
	}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChain records transactions and answers Safe view calls
type fakeChain struct {
	mu        sync.Mutex
	sent      []usecase.TxRequest
	statuses  map[common.Hash]uint64
	failFrom  map[common.Address]error
	revertTo  map[common.Address]bool
	threshold int64

	impersonated []common.Address
	stopped      []common.Address
	funded       []common.Address
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		statuses:  make(map[common.Hash]uint64),
		failFrom:  make(map[common.Address]error),
		revertTo:  make(map[common.Address]bool),
		threshold: 3,
	}
}

func (f *fakeChain) ChainID(context.Context) (uint64, error) { return 31337, nil }

func (f *fakeChain) ImplementationOf(context.Context, common.Address) (common.Address, error) {
	return common.Address{}, errors.New("not used")
}

func (f *fakeChain) Call(_ context.Context, req usecase.TxRequest) ([]byte, error) {
	parsed, err := bindings.SafeMetaData.ParseABI()
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(req.Data, parsed.Methods["nonce"].ID):
		return common.LeftPadBytes(big.NewInt(7).Bytes(), 32), nil
	case bytes.HasPrefix(req.Data, parsed.Methods["getThreshold"].ID):
		return common.LeftPadBytes(big.NewInt(f.threshold).Bytes(), 32), nil
	case bytes.HasPrefix(req.Data, parsed.Methods["getTransactionHash"].ID):
		return safeTxHash.Bytes(), nil
	}
	return nil, errors.New("unexpected call")
}

func (f *fakeChain) SendTransaction(_ context.Context, req usecase.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFrom[req.From]; err != nil {
		return common.Hash{}, err
	}
	f.sent = append(f.sent, req)
	hash := common.BigToHash(big.NewInt(int64(len(f.sent))))
	status := types.ReceiptStatusSuccessful
	if req.To != nil && f.revertTo[*req.To] {
		status = types.ReceiptStatusFailed
	}
	f.statuses[hash] = status
	return hash, nil
}

func (f *fakeChain) WaitMined(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[hash]
	if !ok {
		return nil, errors.New("unknown tx")
	}
	return &types.Receipt{TxHash: hash, Status: status}, nil
}

func (f *fakeChain) Impersonate(_ context.Context, account common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impersonated = append(f.impersonated, account)
	return nil
}

func (f *fakeChain) StopImpersonating(_ context.Context, account common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, account)
	return nil
}

func (f *fakeChain) SetBalance(_ context.Context, account common.Address, _ *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funded = append(f.funded, account)
	return nil
}

func (f *fakeChain) sentFrom(account common.Address) []usecase.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []usecase.TxRequest
	for _, req := range f.sent {
		if req.From == account {
			out = append(out, req)
		}
	}
	return out
}

func testEffects() []models.Effect {
	return []models.Effect{
		{Target: common.HexToAddress("0x00000000000000000000000000000000000000e1"), Data: []byte{0x01, 0x02}, Kind: models.EffectDeferred},
		{Target: common.HexToAddress("0x00000000000000000000000000000000000000e2"), Data: []byte{0x03}, Value: big.NewInt(9), Kind: models.EffectDeferred},
	}
}

func multisigChannel(threshold int) models.MultisigSimulatedChannel {
	return models.MultisigSimulatedChannel{
		Safe:      safeAddr,
		MultiSend: multiSendAddr,
		Executor:  owners[0],
		Threshold: threshold,
		Owners:    owners,
	}
}

// unpackExec decodes the arguments of an execTransaction call
func unpackExec(t *testing.T, data []byte) []any {
	t.Helper()
	parsed, err := bindings.SafeMetaData.ParseABI()
	require.NoError(t, err)
	method := parsed.Methods["execTransaction"]
	require.True(t, bytes.HasPrefix(data, method.ID))
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return args
}

func TestDirect_SendsEffectsInOrder(t *testing.T) {
	chain := newFakeChain()
	signer := common.HexToAddress("0x00000000000000000000000000000000000000f0")
	backend := NewDirect(models.DirectChannel{Signer: signer}, chain, discardLogger())

	effects := testEffects()
	result, err := backend.Execute(context.Background(), effects)
	require.NoError(t, err)

	require.Len(t, chain.sent, 2)
	for i, req := range chain.sent {
		assert.Equal(t, signer, req.From)
		require.NotNil(t, req.To)
		assert.Equal(t, effects[i].Target, *req.To)
		assert.Equal(t, effects[i].Data, req.Data)
		assert.Equal(t, 0, effects[i].ValueOrZero().Cmp(req.Value))
	}

	assert.Equal(t, models.ChannelDirect, result.Channel)
	assert.True(t, result.Confirmed)
	assert.Equal(t, 2, result.Effects)
	assert.Len(t, result.TxHashes, 2)
}

func TestDirect_StopsAtFirstRevert(t *testing.T) {
	chain := newFakeChain()
	effects := testEffects()
	chain.revertTo[effects[1].Target] = true
	backend := NewDirect(models.DirectChannel{Signer: owners[0]}, chain, discardLogger())

	_, err := backend.Execute(context.Background(), append(effects, models.Effect{Target: owners[4]}))
	require.Error(t, err)

	var failed domain.ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Index)
	assert.Equal(t, effects[1].Target, failed.Target)
	assert.NotEqual(t, common.Hash{}, failed.TxHash)
	assert.ErrorIs(t, err, domain.ErrReverted)

	// the third effect was never sent
	assert.Len(t, chain.sent, 2)
}

func TestDirect_SendError(t *testing.T) {
	chain := newFakeChain()
	chain.failFrom[owners[0]] = errors.New("insufficient funds")
	backend := NewDirect(models.DirectChannel{Signer: owners[0]}, chain, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	var failed domain.ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 0, failed.Index)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestMultisigSimulated_CollectsThresholdApprovals(t *testing.T) {
	chain := newFakeChain()
	backend := NewMultisigSimulated(multisigChannel(3), models.EnvironmentFork, chain, chain, discardLogger())

	result, err := backend.Execute(context.Background(), testEffects())
	require.NoError(t, err)

	safe := bindings.NewSafe()
	approveData, err := safe.PackApproveHash(safeTxHash)
	require.NoError(t, err)

	// executor + 2 approvals reach a threshold of 3; the other owners stay idle
	for _, owner := range owners[1:3] {
		sent := chain.sentFrom(owner)
		require.Len(t, sent, 1, "owner %s", owner.Hex())
		assert.Equal(t, safeAddr, *sent[0].To)
		assert.Equal(t, approveData, sent[0].Data)
	}
	assert.Empty(t, chain.sentFrom(owners[3]))
	assert.Empty(t, chain.sentFrom(owners[4]))

	execs := chain.sentFrom(owners[0])
	require.Len(t, execs, 1)
	args := unpackExec(t, execs[0].Data)
	assert.Equal(t, multiSendAddr, args[0])
	assert.Equal(t, uint8(models.OperationDelegateCall), args[3])

	signatures := args[9].([]byte)
	require.Len(t, signatures, 3*65)
	for i, owner := range owners[:3] {
		sig := signatures[i*65 : (i+1)*65]
		assert.Equal(t, owner, common.BytesToAddress(sig[:32]))
		assert.Equal(t, byte(1), sig[64])
	}

	assert.True(t, result.Confirmed)
	assert.Equal(t, models.ChannelMultisigSimulated, result.Channel)
	require.NotNil(t, result.SafeTxHash)
	assert.Equal(t, safeTxHash, *result.SafeTxHash)
	assert.Len(t, result.TxHashes, 3)
	assert.ElementsMatch(t, owners[:3], chain.funded)
	assert.ElementsMatch(t, chain.impersonated, chain.stopped)
}

func TestMultisigSimulated_QuorumNotReached(t *testing.T) {
	chain := newFakeChain()
	chain.failFrom[owners[2]] = errors.New("impersonation rejected")
	backend := NewMultisigSimulated(multisigChannel(3), models.EnvironmentFork, chain, chain, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuorumNotReached)
	assert.Contains(t, err.Error(), "impersonation rejected")

	// only one approval landed and execTransaction was never sent
	assert.Len(t, chain.sentFrom(owners[1]), 1)
	assert.Empty(t, chain.sentFrom(owners[0]))
}

func TestMultisigSimulated_UsesOnchainThreshold(t *testing.T) {
	chain := newFakeChain()
	chain.threshold = 2
	backend := NewMultisigSimulated(multisigChannel(3), models.EnvironmentFork, chain, chain, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	require.NoError(t, err)
	assert.Len(t, chain.sentFrom(owners[1]), 1)
	assert.Empty(t, chain.sentFrom(owners[2]))
}

func TestMultisigSimulated_ZeroOnchainThreshold(t *testing.T) {
	chain := newFakeChain()
	chain.threshold = 0
	backend := NewMultisigSimulated(multisigChannel(1), models.EnvironmentFork, chain, chain, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	assert.ErrorIs(t, err, domain.ErrQuorumNotReached)
	for _, owner := range owners {
		assert.Empty(t, chain.sentFrom(owner))
	}
}

func TestMultisigSimulated_ExecReverts(t *testing.T) {
	chain := newFakeChain()
	chain.threshold = 1
	chain.revertTo[safeAddr] = true
	backend := NewMultisigSimulated(multisigChannel(1), models.EnvironmentFork, chain, chain, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	var failed domain.ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, -1, failed.Index)
	assert.Equal(t, safeAddr, failed.Target)
	assert.ErrorIs(t, err, domain.ErrReverted)
}

func TestMultisigSimulated_RefusedOutsideFork(t *testing.T) {
	for _, env := range []models.Environment{models.EnvironmentLocal, models.EnvironmentLive} {
		t.Run(string(env), func(t *testing.T) {
			chain := newFakeChain()
			backend := NewMultisigSimulated(multisigChannel(3), env, chain, chain, discardLogger())

			_, err := backend.Execute(context.Background(), testEffects())
			assert.ErrorIs(t, err, domain.ErrChannelUnavailable)
			assert.Empty(t, chain.sent)
			assert.Empty(t, chain.impersonated)
		})
	}
}

type fakeRelay struct {
	proposals []models.Proposal
	err       error
}

func (f *fakeRelay) SubmitProposal(_ context.Context, proposal models.Proposal) (*models.ProposalSubmission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.proposals = append(f.proposals, proposal)
	return &models.ProposalSubmission{Submitted: true, ProposalID: "p-1"}, nil
}

func relayedChannel() models.RelayedProposalChannel {
	return models.RelayedProposalChannel{
		Safe:      safeAddr,
		MultiSend: multiSendAddr,
		Relay:     models.RelayCredentials{URL: "https://relay.example.com", Network: "mainnet"},
	}
}

func TestRelayedProposal_SubmitsWithoutConfirming(t *testing.T) {
	relay := &fakeRelay{}
	backend := NewRelayedProposal(relayedChannel(), relay, discardLogger())
	backend.LabelProposal("Release 7", "pool upgrade")

	result, err := backend.Execute(context.Background(), testEffects())
	require.NoError(t, err)

	assert.False(t, result.Confirmed)
	require.NotNil(t, result.Proposal)
	assert.True(t, result.Proposal.Submitted)
	assert.Equal(t, "p-1", result.Proposal.ProposalID)

	require.Len(t, relay.proposals, 1)
	p := relay.proposals[0]
	assert.Equal(t, "Release 7", p.Title)
	assert.Contains(t, p.Description, "pool upgrade")
	assert.Equal(t, multiSendAddr, p.Target)
	assert.Equal(t, safeAddr, p.ApprovingMultisig)
	assert.Equal(t, models.OperationDelegateCall, p.Operation)
	assert.Equal(t, "mainnet", p.Network)
	assert.NotEmpty(t, p.IdempotencyKey)
}

func TestRelayedProposal_FreshIdempotencyKeyPerCall(t *testing.T) {
	relay := &fakeRelay{}
	backend := NewRelayedProposal(relayedChannel(), relay, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	require.NoError(t, err)
	_, err = backend.Execute(context.Background(), testEffects())
	require.NoError(t, err)

	require.Len(t, relay.proposals, 2)
	assert.NotEqual(t, relay.proposals[0].IdempotencyKey, relay.proposals[1].IdempotencyKey)
	assert.Equal(t, relay.proposals[0].Payload, relay.proposals[1].Payload)
}

func TestRelayedProposal_SubmitError(t *testing.T) {
	backend := NewRelayedProposal(relayedChannel(), &fakeRelay{err: errors.New("503")}, discardLogger())

	_, err := backend.Execute(context.Background(), testEffects())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestPayloadIdenticalAcrossMultisigChannels(t *testing.T) {
	chain := newFakeChain()
	relay := &fakeRelay{}

	_, err := NewMultisigSimulated(multisigChannel(3), models.EnvironmentFork, chain, chain, discardLogger()).
		Execute(context.Background(), testEffects())
	require.NoError(t, err)
	_, err = NewRelayedProposal(relayedChannel(), relay, discardLogger()).
		Execute(context.Background(), testEffects())
	require.NoError(t, err)

	execs := chain.sentFrom(owners[0])
	require.Len(t, execs, 1)
	args := unpackExec(t, execs[0].Data)
	require.Len(t, relay.proposals, 1)
	assert.Equal(t, relay.proposals[0].Payload, args[2].([]byte))
}

func TestNew_BuildsBackendPerChannel(t *testing.T) {
	chain := newFakeChain()
	deps := Deps{Env: models.EnvironmentFork, Chain: chain, Fork: chain, Log: discardLogger()}

	tests := []struct {
		channel models.ExecutionChannel
		want    models.ChannelKind
	}{
		{models.DirectChannel{Signer: owners[0]}, models.ChannelDirect},
		{multisigChannel(2), models.ChannelMultisigSimulated},
		{relayedChannel(), models.ChannelRelayedProposal},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			backend, err := New(tt.channel, deps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.Channel())
		})
	}
}

func TestUnavailable(t *testing.T) {
	backend := &Unavailable{Env: models.EnvironmentLive, Reason: errors.New("relayed proposals require a relay URL")}
	assert.Equal(t, models.ChannelKind(""), backend.Channel())

	_, err := backend.Execute(context.Background(), []models.Effect{{Target: safeAddr}})
	require.ErrorIs(t, err, domain.ErrChannelUnavailable)
	assert.Contains(t, err.Error(), "relay URL")
}
