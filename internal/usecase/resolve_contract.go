package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

const maxSuggestions = 3

// ResolveContract maps logical contract names to their live addresses
type ResolveContract struct {
	manifest ContractLookup
	public   PublicRegistry
	chain    ChainClient
	env      models.Environment
	log      *slog.Logger
}

// NewResolveContract creates a new contract registry. public may be nil when
// no live-network manifest is configured.
func NewResolveContract(
	manifest ManifestStore,
	public PublicRegistry,
	chain ChainClient,
	cfg *config.RuntimeConfig,
	log *slog.Logger,
) *ResolveContract {
	return &ResolveContract{
		manifest: manifest,
		public:   public,
		chain:    chain,
		env:      cfg.Environment(),
		log:      log.With("component", "registry"),
	}
}

// Resolve looks up a logical contract. For proxied contracts the
// implementation is always read from the proxy, never from the manifest.
func (r *ResolveContract) Resolve(ctx context.Context, name string) (*models.LogicalContract, error) {
	entry, source, err := r.lookup(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, UnknownContract(ctx, r.manifest, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", name, err)
	}

	contract := &models.LogicalContract{
		Name:           name,
		Address:        entry.Address,
		Implementation: entry.Address,
		ABI:            entry.ABI,
		ContractName:   entry.ContractName,
		StorageLayout:  entry.StorageLayout,
		Source:         source,
	}

	proxyEntry, _, err := r.lookup(ctx, models.ProxyEntryName(name))
	if errors.Is(err, domain.ErrNotFound) {
		return contract, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up proxy of %s: %w", name, err)
	}

	proxy := proxyEntry.Address
	impl, err := r.chain.ImplementationOf(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to read implementation of %s proxy %s: %w", name, proxy.Hex(), err)
	}

	if entry.Implementation != nil && *entry.Implementation != impl {
		r.log.Warn("manifest implementation differs from chain",
			"contract", name,
			"manifest", entry.Implementation.Hex(),
			"chain", impl.Hex())
	}

	contract.Address = proxy
	contract.ProxyAddress = &proxy
	contract.ProxyABI = proxyEntry.ABI
	contract.Implementation = impl
	return contract, nil
}

// Names lists the logical contracts that can be resolved, without proxy records
func (r *ResolveContract) Names(ctx context.Context) ([]string, error) {
	names, err := r.manifest.Names(ctx)
	if err != nil {
		return nil, err
	}
	if r.env == models.EnvironmentFork && r.public != nil {
		public, err := r.public.Names(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, public...)
	}

	names = lo.Uniq(lo.Filter(names, func(name string, _ int) bool {
		return !strings.HasSuffix(name, models.ProxySuffix)
	}))
	sort.Strings(names)
	return names, nil
}

// lookup finds a record in the local manifest, then the Test-prefixed record
// (local environment only), then the public registry (fork environment only).
func (r *ResolveContract) lookup(ctx context.Context, key string) (*models.ManifestEntry, models.ContractSource, error) {
	entry, err := r.manifest.Get(ctx, key)
	if err == nil {
		return entry, models.SourceManifest, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	if r.env.AllowsTestRecords() {
		entry, err = r.manifest.Get(ctx, models.TestEntryName(key))
		if err == nil {
			r.log.Debug("resolved test deployment", "name", key)
			return entry, models.SourceTestManifest, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	if r.env == models.EnvironmentFork && r.public != nil {
		entry, err = r.public.Get(ctx, key)
		if err == nil {
			// Effects built from this record will target live-network addresses.
			r.log.Warn("no local deployment record, using live network registry",
				"name", key,
				"address", entry.Address.Hex())
			return entry, models.SourcePublic, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	return nil, "", domain.ErrNotFound
}

// UnknownContract builds an UnknownContractError with fuzzy suggestions from the manifest
func UnknownContract(ctx context.Context, lookup ContractLookup, name string) error {
	unknown := domain.UnknownContractError{Name: name}
	names, err := lookup.Names(ctx)
	if err != nil {
		return unknown
	}
	for i, match := range fuzzy.Find(name, names) {
		if i == maxSuggestions {
			break
		}
		unknown.Suggestions = append(unknown.Suggestions, match.Str)
	}
	return unknown
}
