package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
	"gopkg.in/yaml.v3"
)

// Loader reads release plans from YAML files
type Loader struct {
	root string
	log  *slog.Logger
}

// NewLoader creates a plan loader resolving relative paths against root
func NewLoader(root string, log *slog.Logger) *Loader {
	return &Loader{
		root: root,
		log:  log.With("component", "plan"),
	}
}

// Load reads and validates the plan at path
func (l *Loader) Load(_ context.Context, path string) (*models.ReleasePlan, error) {
	if !filepath.IsAbs(path) && l.root != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(l.root, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("release plan not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read release plan: %w", err)
	}

	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.log.Debug("loaded release plan", "path", path, "upgrades", len(plan.Upgrades), "calls", len(plan.Calls))
	return plan, nil
}

// Parse decodes a release plan. Unknown keys are rejected so that typos
// don't silently drop an upgrade or call.
func Parse(data []byte) (*models.ReleasePlan, error) {
	var plan models.ReleasePlan

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("release plan is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&plan); err != nil {
		return nil, fmt.Errorf("invalid release plan: %w", err)
	}
	return &plan, nil
}

// Validate checks the structure of a plan before anything touches the chain
func Validate(plan *models.ReleasePlan) error {
	if plan.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(plan.Upgrades) == 0 && len(plan.Calls) == 0 {
		return fmt.Errorf("plan has no upgrades and no calls")
	}

	seen := make(map[string]bool, len(plan.Upgrades))
	for i, up := range plan.Upgrades {
		if up.Name == "" {
			return fmt.Errorf("upgrades[%d]: name is required", i)
		}
		if seen[up.Name] {
			return fmt.Errorf("upgrades[%d]: %s is upgraded twice", i, up.Name)
		}
		seen[up.Name] = true

		if up.Init != nil {
			if up.Init.Signature == "" {
				return fmt.Errorf("upgrades[%d].init: signature is required", i)
			}
			if up.Init.Target != "" {
				return fmt.Errorf("upgrades[%d].init: target is always the proxy of %s", i, up.Name)
			}
			if up.Init.Value != "" {
				return fmt.Errorf("upgrades[%d].init: value is not supported", i)
			}
		}
	}

	for i, call := range plan.Calls {
		if call.Target == "" {
			return fmt.Errorf("calls[%d]: target is required", i)
		}
		if call.Signature == "" {
			return fmt.Errorf("calls[%d]: signature is required", i)
		}
	}
	return nil
}

var _ usecase.ReleasePlanLoader = (*Loader)(nil)
