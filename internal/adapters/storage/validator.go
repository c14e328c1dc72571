package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

const gapPrefix = "__gap"

// Layout is the solc storageLayout output
type Layout struct {
	Storage []Variable          `json:"storage"`
	Types   map[string]TypeInfo `json:"types"`
}

// Variable is one state variable in a storage layout
type Variable struct {
	Label    string `json:"label"`
	Contract string `json:"contract"`
	Offset   int    `json:"offset"`
	Slot     string `json:"slot"`
	Type     string `json:"type"`
}

// TypeInfo describes a storage type
type TypeInfo struct {
	Encoding      string `json:"encoding"`
	Label         string `json:"label"`
	NumberOfBytes string `json:"numberOfBytes"`
}

// Validator compares solc storage layouts. Variables may be appended or
// carved out of a trailing __gap; anything else that moves, retypes or
// removes an existing variable is incompatible.
type Validator struct {
	allowUnknown bool
	log          *slog.Logger
}

// NewValidator creates a layout validator
func NewValidator(cfg *config.RuntimeConfig, log *slog.Logger) *Validator {
	return &Validator{
		allowUnknown: cfg.Storage.AllowUnknownLayout,
		log:          log.With("component", "storage"),
	}
}

// CheckCompatible returns a StorageLayoutIncompatibleError when new can't
// safely replace old behind the same proxy.
func (v *Validator) CheckCompatible(_ context.Context, old, updated models.ImplementationRef) error {
	oldLayout, err := parseLayout(old.StorageLayout)
	if err != nil {
		return fmt.Errorf("invalid storage layout of %s: %w", old.ContractName, err)
	}
	newLayout, err := parseLayout(updated.StorageLayout)
	if err != nil {
		return fmt.Errorf("invalid storage layout of %s: %w", updated.ContractName, err)
	}

	if oldLayout == nil || newLayout == nil {
		missing := old.ContractName + " (deployed at " + old.Address.Hex() + ")"
		if newLayout == nil {
			missing = updated.ContractName + ", compile with extra_output = [\"storageLayout\"]"
		}
		if v.allowUnknown {
			v.log.Warn("storage layout unknown, skipping compatibility check", "contract", updated.ContractName, "missing", missing)
			return nil
		}
		return domain.StorageLayoutIncompatibleError{
			Contract: updated.ContractName,
			Details:  []string{"no storage layout for " + missing},
		}
	}

	details := Compare(oldLayout, newLayout)
	if len(details) > 0 {
		return domain.StorageLayoutIncompatibleError{Contract: updated.ContractName, Details: details}
	}

	v.log.Debug("storage layout compatible",
		"old", old.ContractName,
		"new", updated.ContractName,
		"variables", len(newLayout.Storage))
	return nil
}

func parseLayout(raw json.RawMessage) (*Layout, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var layout Layout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// Compare lists the incompatibilities between two layouts
func Compare(before, after *Layout) []string {
	var details []string

	j := 0
	for i := 0; i < len(before.Storage); i++ {
		o := before.Storage[i]

		if j >= len(after.Storage) {
			details = append(details, fmt.Sprintf("variable %s (slot %s) was removed", o.Label, o.Slot))
			continue
		}
		n := after.Storage[j]

		if isGap(o) && !isGap(n) {
			next, detail := consumeGap(before, after, o, j)
			if detail != "" {
				details = append(details, detail)
			}
			j = next + 1
			continue
		}

		if o.Slot != n.Slot || o.Offset != n.Offset {
			details = append(details, fmt.Sprintf("variable %s moved from slot %s offset %d to slot %s offset %d (now %s)",
				o.Label, o.Slot, o.Offset, n.Slot, n.Offset, n.Label))
		} else if isGap(o) && isGap(n) {
			if size(before, o).Cmp(size(after, n)) != 0 {
				details = append(details, fmt.Sprintf("gap %s changed size without new variables", o.Label))
			}
		} else if oldType, newType := typeLabel(before, o), typeLabel(after, n); oldType != newType {
			details = append(details, fmt.Sprintf("variable %s changed type from %s to %s", o.Label, oldType, newType))
		}
		j++
	}

	return details
}

// consumeGap checks the new variables placed inside an old gap. It returns
// the index of the shrunken gap in the new layout.
func consumeGap(before, after *Layout, gap Variable, from int) (int, string) {
	start, ok := new256(gap.Slot)
	if !ok {
		return from, fmt.Sprintf("gap %s has an invalid slot %q", gap.Label, gap.Slot)
	}
	end := new(big.Int).Add(start, slots(size(before, gap)))

	for k := from; k < len(after.Storage); k++ {
		n := after.Storage[k]
		slot, ok := new256(n.Slot)
		if !ok || slot.Cmp(start) < 0 || slot.Cmp(end) >= 0 {
			return k, fmt.Sprintf("variable %s at slot %s does not fit in gap %s", n.Label, n.Slot, gap.Label)
		}
		if isGap(n) {
			newEnd := new(big.Int).Add(slot, slots(size(after, n)))
			if newEnd.Cmp(end) != 0 {
				return k, fmt.Sprintf("gap %s ends at slot %s instead of %s", gap.Label, newEnd, end)
			}
			return k, ""
		}
	}
	return len(after.Storage), fmt.Sprintf("gap %s was removed", gap.Label)
}

func isGap(v Variable) bool {
	return strings.HasPrefix(v.Label, gapPrefix)
}

func typeLabel(layout *Layout, v Variable) string {
	if t, ok := layout.Types[v.Type]; ok && t.Label != "" {
		return t.Label
	}
	return v.Type
}

func size(layout *Layout, v Variable) *big.Int {
	n, _ := new256(layout.Types[v.Type].NumberOfBytes)
	if n == nil {
		return new(big.Int)
	}
	return n
}

// slots converts a byte size to whole 32-byte slots
func slots(bytes *big.Int) *big.Int {
	n := new(big.Int).Add(bytes, big.NewInt(31))
	return n.Div(n, big.NewInt(32))
}

func new256(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

var _ usecase.StorageValidator = (*Validator)(nil)
