package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

var (
	proxyAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	oldImpl     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	newImpl     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	plainAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	publicAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	implABI     = json.RawMessage(`[{"type":"function","name":"deposit","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}]`)
	proxyABI    = json.RawMessage(`[{"type":"function","name":"changeImplementation","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]}]`)
	emptyLayout = json.RawMessage(`{"storage":[],"types":{}}`)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localConfig() *config.RuntimeConfig {
	return &config.RuntimeConfig{Network: &config.Network{Name: "local", ChainID: 31337}}
}

func forkConfig() *config.RuntimeConfig {
	return &config.RuntimeConfig{Network: &config.Network{Name: "mainnet", ChainID: 1}, Fork: true}
}

// memStore is an in-memory ManifestStore
type memStore struct {
	mu      sync.Mutex
	entries map[string]*models.ManifestEntry
	saves   []string
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*models.ManifestEntry)}
}

// withProxied adds a proxied contract record and its proxy record
func (s *memStore) withProxied(name string, impl common.Address) *memStore {
	s.entries[name] = &models.ManifestEntry{
		Address:        proxyAddr,
		ABI:            implABI,
		Implementation: &impl,
		ContractName:   name,
		StorageLayout:  emptyLayout,
	}
	s.entries[models.ProxyEntryName(name)] = &models.ManifestEntry{Address: proxyAddr, ABI: proxyABI}
	return s
}

func (s *memStore) with(name string, entry *models.ManifestEntry) *memStore {
	s.entries[name] = entry
	return s
}

func (s *memStore) Get(_ context.Context, name string) (*models.ManifestEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry.Clone(), nil
}

func (s *memStore) Names(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) Save(_ context.Context, name string, entry *models.ManifestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = entry.Clone()
	s.saves = append(s.saves, name)
	return nil
}

// fakeChain serves implementation slots from a map
type fakeChain struct {
	mu    sync.Mutex
	impls map[common.Address]common.Address
	reads int
}

func newFakeChain() *fakeChain {
	return &fakeChain{impls: map[common.Address]common.Address{proxyAddr: oldImpl}}
}

func (c *fakeChain) setImpl(proxy, impl common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.impls[proxy] = impl
}

func (c *fakeChain) ChainID(context.Context) (uint64, error) { return 31337, nil }

func (c *fakeChain) ImplementationOf(_ context.Context, proxy common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.impls[proxy], nil
}

func (c *fakeChain) Call(context.Context, usecase.TxRequest) ([]byte, error) { return nil, nil }

func (c *fakeChain) SendTransaction(context.Context, usecase.TxRequest) (common.Hash, error) {
	return common.Hash{}, nil
}

func (c *fakeChain) WaitMined(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

// fakeBackend records every batch it receives
type fakeBackend struct {
	kind      models.ChannelKind
	confirmed bool
	err       error
	batches   [][]models.Effect
	onExecute func([]models.Effect)
	title     string
}

func (b *fakeBackend) Channel() models.ChannelKind { return b.kind }

func (b *fakeBackend) Execute(_ context.Context, effects []models.Effect) (*models.ExecutionResult, error) {
	b.batches = append(b.batches, effects)
	if b.err != nil {
		return nil, b.err
	}
	if b.onExecute != nil {
		b.onExecute(effects)
	}
	return &models.ExecutionResult{Channel: b.kind, Confirmed: b.confirmed, Effects: len(effects)}, nil
}

func (b *fakeBackend) LabelProposal(title, _ string) { b.title = title }

// MockDeployer is a mock implementation of Deployer
type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) Deploy(ctx context.Context, req models.DeployRequest) (*models.DeployedContract, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeployedContract), args.Error(1)
}

// MockStorageValidator is a mock implementation of StorageValidator
type MockStorageValidator struct {
	mock.Mock
}

func (m *MockStorageValidator) CheckCompatible(ctx context.Context, old, updated models.ImplementationRef) error {
	args := m.Called(ctx, old, updated)
	return args.Error(0)
}

// MockArtifactReader is a mock implementation of ArtifactReader
type MockArtifactReader struct {
	mock.Mock
}

func (m *MockArtifactReader) Read(ctx context.Context, contractName string) (*models.ContractArtifact, error) {
	args := m.Called(ctx, contractName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContractArtifact), args.Error(1)
}

// recordingSink collects progress output
type recordingSink struct {
	events []usecase.ProgressEvent
	infos  []string
}

func (s *recordingSink) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	s.events = append(s.events, event)
}
func (s *recordingSink) Info(message string) { s.infos = append(s.infos, message) }
func (s *recordingSink) Error(string)        {}

func deployed(name string, addr common.Address) *models.DeployedContract {
	return &models.DeployedContract{
		ContractName:  name,
		Address:       addr,
		ABI:           implABI,
		StorageLayout: emptyLayout,
	}
}
