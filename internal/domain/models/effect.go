package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EffectKind controls when an effect is committed
type EffectKind string

const (
	EffectImmediate EffectKind = "immediate"
	EffectDeferred  EffectKind = "deferred"
)

// Effect is a pending state-changing call destined for a target contract
type Effect struct {
	Target      common.Address `json:"target"`
	Data        []byte         `json:"data"`
	Value       *big.Int       `json:"value,omitempty"`
	Kind        EffectKind     `json:"kind"`
	Description string         `json:"description,omitempty"`
}

// ValueOrZero returns the native value attached to the effect, never nil
func (e Effect) ValueOrZero() *big.Int {
	if e.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(e.Value)
}

// EffectBatch is the ordered list of deferred effects collected for one release
type EffectBatch struct {
	ID      string
	Effects []Effect
}

// NewEffectBatch creates an empty batch with a fresh identifier
func NewEffectBatch() *EffectBatch {
	return &EffectBatch{ID: uuid.NewString()}
}

// Len returns the number of queued effects
func (b *EffectBatch) Len() int {
	return len(b.Effects)
}
