package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// foundryArtifact is the subset of a Foundry build artifact the release needs
type foundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         bytecodeObject  `json:"bytecode"`
	DeployedBytecode bytecodeObject  `json:"deployedBytecode"`
	StorageLayout    json.RawMessage `json:"storageLayout"`
}

// bytecodeObject represents the bytecode section of an artifact
type bytecodeObject struct {
	Object         string                                       `json:"object"`
	LinkReferences map[string]map[string][]models.LinkReference `json:"linkReferences"`
}

// ArtifactReader reads artifacts from the Foundry output directory
type ArtifactReader struct {
	outDir string
	log    *slog.Logger
}

// NewArtifactReader creates a reader for the configured profile's out directory
func NewArtifactReader(cfg *config.RuntimeConfig, log *slog.Logger) *ArtifactReader {
	outDir := cfg.FoundryConfig.OutDir(cfg.FoundryProfile)
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(cfg.ProjectRoot, outDir)
	}
	return &ArtifactReader{
		outDir: outDir,
		log:    log.With("component", "artifacts"),
	}
}

// Read loads the artifact of contractName. Accepted forms are "Name",
// "Name.sol:Name" and "path/to/Name.sol:Name".
func (r *ArtifactReader) Read(_ context.Context, contractName string) (*models.ContractArtifact, error) {
	path, name, err := r.locate(contractName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	var artifact foundryArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if artifact.Bytecode.Object == "" || artifact.Bytecode.Object == "0x" {
		return nil, fmt.Errorf("artifact %s has no bytecode (abstract contract or interface?)", contractName)
	}

	r.log.Debug("read artifact", "contract", name, "path", path)

	var layout []byte
	if len(artifact.StorageLayout) > 0 && string(artifact.StorageLayout) != "null" {
		layout = artifact.StorageLayout
	}

	return &models.ContractArtifact{
		ContractName:     name,
		ABI:              artifact.ABI,
		Bytecode:         artifact.Bytecode.Object,
		DeployedBytecode: artifact.DeployedBytecode.Object,
		StorageLayout:    layout,
		LinkReferences:   artifact.Bytecode.LinkReferences,
	}, nil
}

// locate maps a contract reference to its artifact file
func (r *ArtifactReader) locate(ref string) (string, string, error) {
	if file, name, ok := strings.Cut(ref, ":"); ok {
		path := filepath.Join(r.outDir, filepath.Base(file), name+".json")
		if _, err := os.Stat(path); err != nil {
			return "", "", fmt.Errorf("artifact %s: %w", ref, domain.ErrNotFound)
		}
		return path, name, nil
	}

	path := filepath.Join(r.outDir, ref+".sol", ref+".json")
	if _, err := os.Stat(path); err == nil {
		return path, ref, nil
	}

	matches, err := filepath.Glob(filepath.Join(r.outDir, "*", ref+".json"))
	if err != nil {
		return "", "", err
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("artifact %s in %s: %w", ref, r.outDir, domain.ErrNotFound)
	case 1:
		return matches[0], ref, nil
	}

	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Base(filepath.Dir(m))
	}
	return "", "", fmt.Errorf("contract name %s is ambiguous (%s), use File.sol:%s", ref, strings.Join(files, ", "), ref)
}

var _ usecase.ArtifactReader = (*ArtifactReader)(nil)
