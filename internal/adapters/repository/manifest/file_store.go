package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// FileStore keeps the deployment manifest of one network in a JSON file
type FileStore struct {
	path     string
	mu       sync.RWMutex
	manifest *models.Manifest
}

// NewFileStore loads the manifest at path, or starts an empty one when the
// file does not exist yet. A manifest recorded for another chain is rejected.
func NewFileStore(path, network string, chainID uint64) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		manifest: models.NewManifest(network, chainID),
	}

	loaded, err := loadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}

	if chainID != 0 && loaded.ChainID != 0 && loaded.ChainID != chainID {
		return nil, fmt.Errorf("manifest %s belongs to chain %d, not %d", path, loaded.ChainID, chainID)
	}
	if loaded.Network == "" {
		loaded.Network = network
	}
	if loaded.ChainID == 0 {
		loaded.ChainID = chainID
	}
	s.manifest = loaded
	return s, nil
}

func loadFile(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Contracts == nil {
		m.Contracts = make(map[string]*models.ManifestEntry)
	}
	return &m, nil
}

// Path returns the manifest file location
func (s *FileStore) Path() string {
	return s.path
}

// Get returns a copy of the entry stored under name
func (s *FileStore) Get(_ context.Context, name string) (*models.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.manifest.Contracts[name]
	if !ok {
		return nil, fmt.Errorf("manifest entry %s: %w", name, domain.ErrNotFound)
	}
	return entry.Clone(), nil
}

// Names returns all entry names in sorted order
func (s *FileStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.manifest.Contracts)), nil
}

// Save stores entry under name and rewrites the manifest file. The
// in-memory state is left unchanged when the write fails.
func (s *FileStore) Save(_ context.Context, name string, entry *models.ManifestEntry) error {
	if entry == nil {
		return fmt.Errorf("nil manifest entry for %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.manifest.Contracts[name]
	s.manifest.Contracts[name] = entry.Clone()

	if err := s.saveFile(); err != nil {
		if existed {
			s.manifest.Contracts[name] = previous
		} else {
			delete(s.manifest.Contracts, name)
		}
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// saveFile writes the manifest through a temporary file and an atomic rename
func (s *FileStore) saveFile() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// PublicStore is the read-only manifest of a live network. A nil store
// resolves nothing.
type PublicStore struct {
	store *FileStore
}

// NewPublicStore opens the public manifest at path. An empty path yields a nil store.
func NewPublicStore(path string, chainID uint64) (*PublicStore, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("public manifest %s: %w", path, err)
	}
	store, err := NewFileStore(path, "", chainID)
	if err != nil {
		return nil, err
	}
	return &PublicStore{store: store}, nil
}

// Get returns the public record of name
func (p *PublicStore) Get(ctx context.Context, name string) (*models.ManifestEntry, error) {
	if p == nil {
		return nil, fmt.Errorf("public entry %s: %w", name, domain.ErrNotFound)
	}
	return p.store.Get(ctx, name)
}

// Names returns the names in the public manifest
func (p *PublicStore) Names(ctx context.Context) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	return p.store.Names(ctx)
}

// Ensure the stores implement the interfaces
var (
	_ usecase.ManifestStore  = (*FileStore)(nil)
	_ usecase.PublicRegistry = (*PublicStore)(nil)
)
