package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// RecordStatus is the outcome of a manifest write
type RecordStatus string

const (
	RecordWritten RecordStatus = "written"
	// RecordSkipped means the manifest already matches the chain (ManifestWriteSkipped)
	RecordSkipped RecordStatus = "skipped"
)

// RecordResult reports what the manifest writer did for one contract
type RecordResult struct {
	Name           string
	Status         RecordStatus
	Implementation common.Address
}

// RecordUpgrade is the only writer of the deployment manifest
type RecordUpgrade struct {
	store    ManifestStore
	chain    ChainClient
	progress ProgressSink
	log      *slog.Logger
	now      func() time.Time
}

// NewRecordUpgrade creates a new manifest writer
func NewRecordUpgrade(store ManifestStore, chain ChainClient, progress ProgressSink, log *slog.Logger) *RecordUpgrade {
	return &RecordUpgrade{
		store:    store,
		chain:    chain,
		progress: progress,
		log:      log.With("component", "manifest-writer"),
		now:      time.Now,
	}
}

// Record writes the new implementation of name once the proxy points at it
// on-chain. When the manifest already records the live implementation nothing
// is written.
func (w *RecordUpgrade) Record(ctx context.Context, name string, record models.UpgradeRecord) (*RecordResult, error) {
	live, err := w.chain.ImplementationOf(ctx, record.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to read implementation of %s: %w", name, err)
	}

	prior, err := w.store.Get(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to read manifest entry %s: %w", name, err)
	}

	if prior != nil && prior.Implementation != nil && *prior.Implementation == live {
		w.log.Info("manifest already up to date", "contract", name, "implementation", live.Hex())
		return &RecordResult{Name: name, Status: RecordSkipped, Implementation: live}, nil
	}

	if live != record.NewImplementation {
		return nil, fmt.Errorf("%s: proxy %s points at %s, expected %s: %w",
			name, record.Proxy.Hex(), live.Hex(), record.NewImplementation.Hex(), domain.ErrUpgradeNotConfirmed)
	}

	var proxyABI []byte
	if proxyEntry, err := w.store.Get(ctx, models.ProxyEntryName(name)); err == nil {
		proxyABI = proxyEntry.ABI
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to read manifest entry %s: %w", models.ProxyEntryName(name), err)
	}

	merged, err := bindings.MergeABIs(proxyABI, record.ABI)
	if err != nil {
		return nil, fmt.Errorf("failed to merge ABIs of %s: %w", name, err)
	}

	entry := &models.ManifestEntry{}
	if prior != nil {
		entry = prior.Clone()
	}
	previous := record.PreviousImplementation
	if prior != nil && prior.Implementation != nil {
		previous = *prior.Implementation
	}

	now := w.now().UTC()
	entry.Address = record.Proxy
	entry.ABI = merged
	entry.Implementation = &live
	entry.ContractName = record.ContractName
	entry.StorageLayout = record.StorageLayout
	entry.History = append(entry.History, models.ImplementationChange{
		Previous:       previous,
		Implementation: live,
		RecordedAt:     now,
	})
	entry.UpdatedAt = now

	if err := w.store.Save(ctx, name, entry); err != nil {
		return nil, fmt.Errorf("failed to save manifest entry %s: %w", name, err)
	}

	w.log.Info("recorded upgrade", "contract", name, "previous", previous.Hex(), "implementation", live.Hex())
	w.progress.Info(fmt.Sprintf("Recorded %s implementation %s", name, live.Hex()))
	return &RecordResult{Name: name, Status: RecordWritten, Implementation: live}, nil
}
