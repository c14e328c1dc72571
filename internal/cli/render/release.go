package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bindings"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ReleaseRenderer renders the outcome of a release run
type ReleaseRenderer struct {
	out io.Writer
}

// NewReleaseRenderer creates a new release renderer
func NewReleaseRenderer(out io.Writer) *ReleaseRenderer {
	return &ReleaseRenderer{out: out}
}

// RenderPlan shows what is about to be executed and through which channel
func (r *ReleaseRenderer) RenderPlan(plan *models.ReleasePlan, channel models.ChannelKind, env models.Environment) {
	fmt.Fprintf(r.out, "%s %s\n", section("Release:"), plan.Title)
	fmt.Fprintf(r.out, "  Environment: %s\n", env)
	if channel != "" {
		fmt.Fprintf(r.out, "  Channel:     %s\n", channel)
	}
	fmt.Fprintf(r.out, "  Upgrades:    %d\n", len(plan.Upgrades))
	fmt.Fprintf(r.out, "  Calls:       %d\n\n", len(plan.Calls))
}

// RenderRelease renders a (possibly partial) release result. runErr is the
// error the run ended with, if any.
func (r *ReleaseRenderer) RenderRelease(result *usecase.RunReleaseResult, runErr error) error {
	if result == nil {
		return nil
	}

	if len(result.Upgrades) > 0 {
		fmt.Fprintln(r.out, section("Implementations"))
		t := newTable()
		t.AppendHeader(table.Row{"Contract", "Proxy", "Previous", "New"})
		for _, up := range result.Upgrades {
			t.AppendRow(table.Row{
				up.Name,
				up.Proxy.Hex(),
				up.PreviousImplementation.Hex(),
				color.New(color.FgGreen).Sprint(up.NewImplementation.Hex()),
			})
		}
		fmt.Fprintln(r.out, t.Render())
		fmt.Fprintln(r.out)
	}

	r.renderEffects(result)

	if result.DryRun {
		fmt.Fprintln(r.out, FormatWarning("Dry run: implementations deployed, batch not executed"))
		return nil
	}

	if result.Execution != nil {
		r.renderExecution(result)
	}
	r.renderFailure(runErr)

	if len(result.Records) > 0 {
		fmt.Fprintln(r.out, section("Manifest"))
		for _, record := range result.Records {
			switch record.Status {
			case usecase.RecordWritten:
				fmt.Fprintf(r.out, "  %s %s → %s\n", color.New(color.FgGreen).Sprint("✓"), record.Name, record.Implementation.Hex())
			default:
				fmt.Fprintf(r.out, "  %s %s already up to date\n", color.New(color.Faint).Sprint("="), record.Name)
			}
		}
		fmt.Fprintln(r.out)
	}

	if len(result.PendingSync) > 0 {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf(
			"Manifest not updated for %s. Once the proposal is executed run: treb-release sync %s",
			strings.Join(result.PendingSync, ", "),
			strings.Join(result.PendingSync, " "))))
	}

	if runErr != nil || (result.Execution != nil && !result.Execution.Confirmed) {
		fmt.Fprintln(r.out, FormatWarning(
			"Re-running this release deploys new implementations and queues every effect again. "+
				"Check the chain and run sync before retrying."))
	}
	return nil
}

func (r *ReleaseRenderer) renderEffects(result *usecase.RunReleaseResult) {
	if len(result.Effects) == 0 {
		fmt.Fprintln(r.out, "No effects queued.")
		fmt.Fprintln(r.out)
		return
	}

	fmt.Fprintf(r.out, "%s (batch %s)\n", section("Effects"), result.BatchID)
	t := newTable()
	t.AppendHeader(table.Row{"#", "Target", "Selector", "Value", "Description"})
	for i, effect := range result.Effects {
		selector := "-"
		if len(effect.Data) >= 4 {
			selector = hexutil.Encode(effect.Data[:4])
		}
		value := "-"
		if effect.Value != nil && effect.Value.Sign() > 0 {
			value = bindings.FormatEther(effect.Value) + " ETH"
		}
		t.AppendRow(table.Row{i, effect.Target.Hex(), selector, value, effect.Description})
	}
	fmt.Fprintln(r.out, t.Render())

	if total := bindings.TotalValue(result.Effects); total.Sign() > 0 {
		fmt.Fprintf(r.out, "  Total value: %s ETH\n", bindings.FormatEther(total))
	}
	if result.PayloadHash != nil {
		fmt.Fprintf(r.out, "  Payload hash: %s\n", result.PayloadHash.Hex())
	}
	fmt.Fprintln(r.out)
}

func (r *ReleaseRenderer) renderExecution(result *usecase.RunReleaseResult) {
	exec := result.Execution
	fmt.Fprintf(r.out, "%s via %s\n", section("Execution"), exec.Channel)

	for _, hash := range exec.TxHashes {
		fmt.Fprintf(r.out, "  tx %s\n", hash.Hex())
	}
	if exec.SafeTxHash != nil {
		fmt.Fprintf(r.out, "  safe tx %s\n", exec.SafeTxHash.Hex())
	}
	if exec.Proposal != nil {
		fmt.Fprintf(r.out, "  proposal %s submitted\n", exec.Proposal.ProposalID)
		if exec.Proposal.URL != "" {
			fmt.Fprintf(r.out, "  %s\n", exec.Proposal.URL)
		}
	}

	switch {
	case exec.Effects == 0:
		fmt.Fprintln(r.out, FormatSuccess("Nothing to execute"))
	case exec.Confirmed:
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%d effects confirmed on-chain", exec.Effects)))
	default:
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%d effects awaiting approval, not yet on-chain", exec.Effects)))
	}
	fmt.Fprintln(r.out)
}

func (r *ReleaseRenderer) renderFailure(err error) {
	var failed domain.ExecutionFailedError
	if !errors.As(err, &failed) {
		return
	}
	fmt.Fprintln(r.out, section("Execution failed"))
	if failed.Index >= 0 {
		fmt.Fprintf(r.out, "  effect #%d to %s\n", failed.Index, failed.Target.Hex())
	}
	if failed.TxHash != (common.Hash{}) {
		fmt.Fprintf(r.out, "  failing tx %s\n", failed.TxHash.Hex())
	}
	if failed.Index > 0 && failed.Channel == string(models.ChannelDirect) {
		fmt.Fprintf(r.out, "  effects #0..#%d already landed and were not rolled back\n", failed.Index-1)
	}
	fmt.Fprintln(r.out)
}
