package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// SyncManifest records upgrades that landed after the release run, typically
// relayed proposals executed by the multisig later on.
type SyncManifest struct {
	store     ManifestStore
	chain     ChainClient
	artifacts ArtifactReader
	writer    *RecordUpgrade
	progress  ProgressSink
	log       *slog.Logger
}

// NewSyncManifest creates a new manifest sync use case
func NewSyncManifest(
	store ManifestStore,
	chain ChainClient,
	artifacts ArtifactReader,
	writer *RecordUpgrade,
	progress ProgressSink,
	log *slog.Logger,
) *SyncManifest {
	return &SyncManifest{
		store:     store,
		chain:     chain,
		artifacts: artifacts,
		writer:    writer,
		progress:  progress,
		log:       log.With("component", "sync"),
	}
}

// Execute syncs the given contracts, or every proxied contract of the
// manifest when names is empty.
func (s *SyncManifest) Execute(ctx context.Context, names []string) ([]RecordResult, error) {
	explicit := len(names) > 0
	if !explicit {
		var err error
		names, err = s.proxiedNames(ctx)
		if err != nil {
			return nil, err
		}
	}

	results := make([]RecordResult, 0, len(names))
	for i, name := range names {
		s.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "sync",
			Current: i + 1,
			Total:   len(names),
			Message: fmt.Sprintf("Syncing %s", name),
			Spinner: true,
		})

		result, err := s.sync(ctx, name)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *SyncManifest) sync(ctx context.Context, name string) (*RecordResult, error) {
	entry, err := s.store.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, UnknownContract(ctx, s.store, name)
	}
	if err != nil {
		return nil, err
	}

	proxyEntry, err := s.store.Get(ctx, models.ProxyEntryName(name))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotProxied)
	}
	if err != nil {
		return nil, err
	}

	live, err := s.chain.ImplementationOf(ctx, proxyEntry.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to read implementation of %s: %w", name, err)
	}
	if entry.Implementation != nil && *entry.Implementation == live {
		s.log.Debug("manifest in sync", "contract", name, "implementation", live.Hex())
		return &RecordResult{Name: name, Status: RecordSkipped, Implementation: live}, nil
	}

	contractName := entry.ContractName
	if contractName == "" {
		contractName = name
	}
	artifact, err := s.artifacts.Read(ctx, contractName)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s for %s: %w", contractName, name, err)
	}
	s.log.Warn("recording implementation with the local artifact interface",
		"contract", name,
		"artifact", artifact.ContractName,
		"implementation", live.Hex())

	record := models.UpgradeRecord{
		Name:              name,
		Proxy:             proxyEntry.Address,
		NewImplementation: live,
		ContractName:      artifact.ContractName,
		ABI:               artifact.ABI,
		StorageLayout:     artifact.StorageLayout,
	}
	if entry.Implementation != nil {
		record.PreviousImplementation = *entry.Implementation
	}
	return s.writer.Record(ctx, name, record)
}

// proxiedNames lists manifest contracts that have a proxy record
func (s *SyncManifest) proxiedNames(ctx context.Context) ([]string, error) {
	all, err := s.store.Names(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(all))
	for _, name := range all {
		present[name] = true
	}

	var names []string
	for _, name := range all {
		if strings.HasSuffix(name, models.ProxySuffix) {
			continue
		}
		if present[models.ProxyEntryName(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
