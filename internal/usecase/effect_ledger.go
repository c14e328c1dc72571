package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// EffectLedger accumulates deferred effects for a release and flushes them
// through the execution backend selected for the run.
type EffectLedger struct {
	mu       sync.Mutex
	backend  ExecutionBackend
	batch    *models.EffectBatch
	progress ProgressSink
	log      *slog.Logger
}

// NewEffectLedger creates an empty ledger bound to one execution backend
func NewEffectLedger(backend ExecutionBackend, progress ProgressSink, log *slog.Logger) *EffectLedger {
	return &EffectLedger{
		backend:  backend,
		batch:    models.NewEffectBatch(),
		progress: progress,
		log:      log.With("component", "ledger"),
	}
}

// Add appends effects to the deferred batch. Either all effects are queued or
// none are: immediate effects fail with domain.ErrNotImplemented.
func (l *EffectLedger) Add(effects ...models.Effect) error {
	queued := make([]models.Effect, 0, len(effects))
	for i, effect := range effects {
		switch effect.Kind {
		case models.EffectDeferred, "":
			effect.Kind = models.EffectDeferred
		case models.EffectImmediate:
			return fmt.Errorf("effect #%d (%s): immediate effects: %w", i, describe(effect), domain.ErrNotImplemented)
		default:
			return fmt.Errorf("effect #%d (%s): unknown effect kind %q", i, describe(effect), effect.Kind)
		}
		if effect.Target == (common.Address{}) {
			return fmt.Errorf("effect #%d (%s): missing target", i, describe(effect))
		}
		effect.Data = slices.Clone(effect.Data)
		effect.Value = effect.ValueOrZero()
		queued = append(queued, effect)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.batch.Effects = append(l.batch.Effects, queued...)
	l.log.Debug("queued effects", "batch", l.batch.ID, "added", len(queued), "total", l.batch.Len())
	return nil
}

// Pending returns a copy of the queued effects in insertion order
func (l *EffectLedger) Pending() []models.Effect {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.batch.Effects)
}

// BatchID returns the identifier of the batch currently being collected
func (l *EffectLedger) BatchID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batch.ID
}

// ExecuteDeferred hands the queued effects, in insertion order, to the
// backend. The batch is consumed whether or not execution succeeds; a second
// call without an intervening Add executes nothing.
func (l *EffectLedger) ExecuteDeferred(ctx context.Context) (*models.ExecutionResult, error) {
	l.mu.Lock()
	batch := l.batch
	l.batch = models.NewEffectBatch()
	l.mu.Unlock()

	if batch.Len() == 0 {
		l.log.Debug("no deferred effects to execute", "batch", batch.ID)
		return &models.ExecutionResult{Channel: l.backend.Channel(), Confirmed: true}, nil
	}

	l.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "execute",
		Total:   batch.Len(),
		Message: fmt.Sprintf("Executing %d effects via %s", batch.Len(), l.backend.Channel()),
		Spinner: true,
	})
	l.log.Info("executing deferred effects",
		"batch", batch.ID,
		"channel", l.backend.Channel(),
		"effects", batch.Len())

	result, err := l.backend.Execute(ctx, batch.Effects)
	if err != nil {
		l.log.Error("batch execution failed", "batch", batch.ID, "error", err)
		return nil, err
	}
	return result, nil
}

// Label names the batch for backends that submit proposals
func (l *EffectLedger) Label(title, description string) {
	if labeler, ok := l.backend.(ProposalLabeler); ok {
		labeler.LabelProposal(title, description)
	}
}

// Channel returns the execution channel the ledger flushes to
func (l *EffectLedger) Channel() models.ChannelKind {
	return l.backend.Channel()
}

func describe(effect models.Effect) string {
	if effect.Description != "" {
		return effect.Description
	}
	return effect.Target.Hex()
}
