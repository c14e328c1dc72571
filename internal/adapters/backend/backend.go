package backend

import (
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/treb-release/internal/adapters/relay"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Deps are the adapters a backend may need
type Deps struct {
	Env   models.Environment
	Chain usecase.ChainClient
	Fork  usecase.ForkController
	Log   *slog.Logger
}

// New builds the backend for a selected channel. It is called once per run.
func New(channel models.ExecutionChannel, deps Deps) (usecase.ExecutionBackend, error) {
	switch ch := channel.(type) {
	case models.DirectChannel:
		return NewDirect(ch, deps.Chain, deps.Log), nil
	case models.MultisigSimulatedChannel:
		return NewMultisigSimulated(ch, deps.Env, deps.Chain, deps.Fork, deps.Log), nil
	case models.RelayedProposalChannel:
		return NewRelayedProposal(ch, relay.NewClient(ch.Relay, deps.Log), deps.Log), nil
	}
	return nil, fmt.Errorf("unsupported execution channel %T", channel)
}
