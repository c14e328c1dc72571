package bindings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type abiFragment struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Inputs []struct {
		Type       string          `json:"type"`
		Components json.RawMessage `json:"components,omitempty"`
	} `json:"inputs"`
}

// MergeABIs combines ABIs in order. A fragment whose signature was already
// seen is dropped, so earlier ABIs win (proxy before implementation).
func MergeABIs(abis ...json.RawMessage) (json.RawMessage, error) {
	seen := make(map[string]bool)
	merged := make([]json.RawMessage, 0)

	for i, raw := range abis {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var fragments []json.RawMessage
		if err := json.Unmarshal(raw, &fragments); err != nil {
			return nil, fmt.Errorf("abi #%d is not a JSON array: %w", i, err)
		}
		for _, fragment := range fragments {
			var f abiFragment
			if err := json.Unmarshal(fragment, &f); err != nil {
				return nil, fmt.Errorf("abi #%d has an invalid fragment: %w", i, err)
			}
			key := fragmentKey(f)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, fragment)
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if _, err := abi.JSON(bytes.NewReader(out)); err != nil {
		return nil, fmt.Errorf("merged abi is invalid: %w", err)
	}
	return out, nil
}

func fragmentKey(f abiFragment) string {
	switch f.Type {
	case "constructor", "fallback", "receive":
		return f.Type
	}
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.Type
		if len(in.Components) > 0 {
			types[i] += string(in.Components)
		}
	}
	return fmt.Sprintf("%s:%s(%s)", f.Type, f.Name, strings.Join(types, ","))
}
