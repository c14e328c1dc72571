package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ChannelRenderer renders the environment and execution channel of a run
type ChannelRenderer struct {
	out io.Writer
}

// NewChannelRenderer creates a new channel renderer
func NewChannelRenderer(out io.Writer) *ChannelRenderer {
	return &ChannelRenderer{out: out}
}

// RenderChannel renders where a release would be executed
func (r *ChannelRenderer) RenderChannel(result *usecase.ShowChannelResult) error {
	fmt.Fprintf(r.out, "Network:     %s (chain %d)\n", result.Network, result.ChainID)
	fmt.Fprintf(r.out, "Environment: %s\n", result.Environment)
	fmt.Fprintf(r.out, "Manifest:    %s\n", result.ManifestPath)
	if result.PublicManifestPath != "" {
		fmt.Fprintf(r.out, "Fallback:    %s\n", result.PublicManifestPath)
	}
	fmt.Fprintln(r.out)

	if result.SelectionError != nil {
		fmt.Fprintln(r.out, FormatError(result.SelectionError.Error()))
		return nil
	}

	bold := color.New(color.Bold)
	switch ch := result.Channel.(type) {
	case models.DirectChannel:
		fmt.Fprintf(r.out, "Channel: %s\n", bold.Sprint(ch.Kind()))
		fmt.Fprintf(r.out, "  Signer: %s\n", ch.Signer.Hex())
	case models.MultisigSimulatedChannel:
		fmt.Fprintf(r.out, "Channel: %s\n", bold.Sprint(ch.Kind()))
		fmt.Fprintf(r.out, "  Safe:      %s\n", ch.Safe.Hex())
		fmt.Fprintf(r.out, "  MultiSend: %s\n", ch.MultiSend.Hex())
		fmt.Fprintf(r.out, "  Threshold: %d of %d\n", ch.Threshold, len(ch.Owners))
		fmt.Fprintf(r.out, "  Executor:  %s\n", ch.Executor.Hex())
		for _, owner := range lo.Without(ch.Owners, ch.Executor) {
			fmt.Fprintf(r.out, "  Owner:     %s\n", owner.Hex())
		}
	case models.RelayedProposalChannel:
		fmt.Fprintf(r.out, "Channel: %s\n", bold.Sprint(ch.Kind()))
		fmt.Fprintf(r.out, "  Safe:      %s\n", ch.Safe.Hex())
		fmt.Fprintf(r.out, "  MultiSend: %s\n", ch.MultiSend.Hex())
		fmt.Fprintf(r.out, "  Relay:     %s\n", ch.Relay.URL)
		fmt.Fprintln(r.out, FormatWarning("Releases are proposals: the manifest is updated by sync after approval"))
	}
	return nil
}
