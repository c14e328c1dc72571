package backend

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Unavailable stands in when no channel could be selected, so that commands
// that never execute effects still work. Executing a non-empty batch fails.
type Unavailable struct {
	Env    models.Environment
	Reason error
}

// Channel returns an empty kind
func (u *Unavailable) Channel() models.ChannelKind {
	return ""
}

// Execute always fails with ErrChannelUnavailable
func (u *Unavailable) Execute(_ context.Context, effects []models.Effect) (*models.ExecutionResult, error) {
	return nil, fmt.Errorf("%w for %s environment: %v", domain.ErrChannelUnavailable, u.Env, u.Reason)
}

var _ usecase.ExecutionBackend = (*Unavailable)(nil)
