package usecase

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ContractLookup reads deployment records by logical name
type ContractLookup interface {
	Get(ctx context.Context, name string) (*models.ManifestEntry, error)
	Names(ctx context.Context) ([]string, error)
}

// ManifestStore is the on-disk deployment manifest. Only the manifest
// writer calls Save.
type ManifestStore interface {
	ContractLookup
	Save(ctx context.Context, name string, entry *models.ManifestEntry) error
}

// PublicRegistry is the read-only deployment record of the live network a fork was taken from
type PublicRegistry interface {
	ContractLookup
}

// TxRequest is a transaction (or call) to submit to the chain
type TxRequest struct {
	From  common.Address
	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte
}

// ChainClient is the chain access needed by the release core
type ChainClient interface {
	ChainID(ctx context.Context) (uint64, error)
	// ImplementationOf reads the implementation slot of a proxy
	ImplementationOf(ctx context.Context, proxy common.Address) (common.Address, error)
	Call(ctx context.Context, req TxRequest) ([]byte, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ForkController exposes test-chain cheats, only available on local nodes and forks
type ForkController interface {
	Impersonate(ctx context.Context, account common.Address) error
	StopImpersonating(ctx context.Context, account common.Address) error
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error
}

// Deployer deploys a named contract and returns its address and interface
type Deployer interface {
	Deploy(ctx context.Context, req models.DeployRequest) (*models.DeployedContract, error)
}

// ArtifactReader reads compiled contract artifacts from the build output
type ArtifactReader interface {
	Read(ctx context.Context, contractName string) (*models.ContractArtifact, error)
}

// StorageValidator checks that a new implementation keeps the old storage layout
type StorageValidator interface {
	CheckCompatible(ctx context.Context, old, updated models.ImplementationRef) error
}

// RelayClient submits proposals to the external approval service
type RelayClient interface {
	SubmitProposal(ctx context.Context, proposal models.Proposal) (*models.ProposalSubmission, error)
}

// ReleasePlanLoader reads a release plan
type ReleasePlanLoader interface {
	Load(ctx context.Context, path string) (*models.ReleasePlan, error)
}

// ContractSelector lets the operator pick a contract when a name is missing or ambiguous
type ContractSelector interface {
	SelectContract(ctx context.Context, names []string, prompt string) (string, error)
}

// ExecutionBackend executes a batch of effects through one execution channel
type ExecutionBackend interface {
	Channel() models.ChannelKind
	Execute(ctx context.Context, effects []models.Effect) (*models.ExecutionResult, error)
}

// ProposalLabeler is implemented by backends whose submissions carry a title
type ProposalLabeler interface {
	LabelProposal(title, description string)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage   string
	Current int
	Total   int
	Message string
	Spinner bool
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}
