package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

func TestResolveContract(t *testing.T) {
	ctx := context.Background()

	t.Run("proxied contract reads implementation from chain", func(t *testing.T) {
		store := newMemStore().withProxied("SeniorPool", oldImpl)
		chain := newFakeChain()
		chain.setImpl(proxyAddr, newImpl)
		resolver := usecase.NewResolveContract(store, nil, chain, localConfig(), testLogger())

		contract, err := resolver.Resolve(ctx, "SeniorPool")
		require.NoError(t, err)
		assert.True(t, contract.IsProxied())
		assert.Equal(t, proxyAddr, contract.Address)
		assert.Equal(t, proxyAddr, *contract.ProxyAddress)
		assert.Equal(t, newImpl, contract.Implementation, "chain wins over manifest")
		assert.JSONEq(t, string(proxyABI), string(contract.ProxyABI))
		assert.Equal(t, models.SourceManifest, contract.Source)

		// no caching between resolves
		chain.setImpl(proxyAddr, oldImpl)
		contract, err = resolver.Resolve(ctx, "SeniorPool")
		require.NoError(t, err)
		assert.Equal(t, oldImpl, contract.Implementation)
		assert.Equal(t, 2, chain.reads)
	})

	t.Run("plain contract", func(t *testing.T) {
		store := newMemStore().with("Fidu", &models.ManifestEntry{Address: plainAddr, ABI: implABI})
		chain := newFakeChain()
		resolver := usecase.NewResolveContract(store, nil, chain, localConfig(), testLogger())

		contract, err := resolver.Resolve(ctx, "Fidu")
		require.NoError(t, err)
		assert.False(t, contract.IsProxied())
		assert.Equal(t, plainAddr, contract.Address)
		assert.Equal(t, plainAddr, contract.Implementation)
		assert.Zero(t, chain.reads)
	})

	t.Run("test record in local environment", func(t *testing.T) {
		store := newMemStore().with("TestUSDC", &models.ManifestEntry{Address: plainAddr})
		resolver := usecase.NewResolveContract(store, nil, newFakeChain(), localConfig(), testLogger())

		contract, err := resolver.Resolve(ctx, "USDC")
		require.NoError(t, err)
		assert.Equal(t, plainAddr, contract.Address)
		assert.Equal(t, models.SourceTestManifest, contract.Source)
	})

	t.Run("test record ignored outside local", func(t *testing.T) {
		store := newMemStore().with("TestUSDC", &models.ManifestEntry{Address: plainAddr})
		resolver := usecase.NewResolveContract(store, nil, newFakeChain(), forkConfig(), testLogger())

		_, err := resolver.Resolve(ctx, "USDC")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("public registry on fork", func(t *testing.T) {
		public := newMemStore().with("USDC", &models.ManifestEntry{Address: publicAddr})
		resolver := usecase.NewResolveContract(newMemStore(), public, newFakeChain(), forkConfig(), testLogger())

		contract, err := resolver.Resolve(ctx, "USDC")
		require.NoError(t, err)
		assert.Equal(t, publicAddr, contract.Address)
		assert.Equal(t, models.SourcePublic, contract.Source)
	})

	t.Run("public registry ignored locally", func(t *testing.T) {
		public := newMemStore().with("USDC", &models.ManifestEntry{Address: publicAddr})
		resolver := usecase.NewResolveContract(newMemStore(), public, newFakeChain(), localConfig(), testLogger())

		_, err := resolver.Resolve(ctx, "USDC")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown contract suggests names", func(t *testing.T) {
		store := newMemStore().withProxied("SeniorPool", oldImpl)
		resolver := usecase.NewResolveContract(store, nil, newFakeChain(), localConfig(), testLogger())

		_, err := resolver.Resolve(ctx, "SeniorPol")
		var unknown domain.UnknownContractError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "SeniorPol", unknown.Name)
		assert.Contains(t, unknown.Suggestions, "SeniorPool")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestResolveContract_Names(t *testing.T) {
	ctx := context.Background()
	store := newMemStore().withProxied("SeniorPool", oldImpl).with("Fidu", &models.ManifestEntry{Address: plainAddr})
	public := newMemStore().with("USDC", &models.ManifestEntry{Address: publicAddr}).with("Fidu", &models.ManifestEntry{Address: publicAddr})

	names, err := usecase.NewResolveContract(store, public, newFakeChain(), forkConfig(), testLogger()).Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fidu", "SeniorPool", "USDC"}, names)

	names, err = usecase.NewResolveContract(store, public, newFakeChain(), localConfig(), testLogger()).Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fidu", "SeniorPool"}, names)
}
