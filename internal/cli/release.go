package cli

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-release/internal/cli/render"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// NewReleaseCmd creates the release command
func NewReleaseCmd() *cobra.Command {
	var (
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "release <plan.yaml>",
		Short: "Upgrade contracts and execute the calls of a release plan",
		Long: `Run a release plan: deploy new implementations, check their storage
layouts against the deployed ones, and execute the proxy upgrades and
plan calls as one batch.

The batch goes through the channel selected for the network:
  - local:  sent directly by the signer
  - fork:   executed through the Safe with impersonated owner approvals
  - live:   proposed to the relay for multisig signing

A dry run stops before the batch is executed, but it still deploys the new
implementations in order to validate their storage layouts. On a live
network those deployments cost gas, so a dry run with upgrades asks for
confirmation there as well.

Examples:
  # Preview the batch of a release on a fork, without executing it
  treb-release release releases/v2.yaml --network mainnet --fork --dry-run

  # Run against a local anvil node
  treb-release release releases/v2.yaml --network local

  # Propose to the Safe on mainnet
  treb-release release releases/v2.yaml --network mainnet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := getSession(cmd)
			if err != nil {
				return err
			}
			app := sess.app
			ctx := cmd.Context()

			plan, err := app.PlanLoader.Load(ctx, args[0])
			if err != nil {
				return err
			}

			channel, err := app.ShowChannel.Run(ctx)
			if err != nil {
				return err
			}
			dryRun = dryRun || app.Config.DryRun
			if channel.SelectionError != nil && !dryRun {
				return fmt.Errorf("%w: %v", domain.ErrChannelUnavailable, channel.SelectionError)
			}

			var kind models.ChannelKind
			if channel.Channel != nil {
				kind = channel.Channel.Kind()
			}

			renderer := render.NewReleaseRenderer(os.Stdout)
			renderer.RenderPlan(plan, kind, channel.Environment)

			if needsConfirmation(channel.Environment, dryRun, len(plan.Upgrades) > 0, yes || app.Config.NonInteractive) {
				label := fmt.Sprintf("Propose %q to the %s multisig", plan.Title, channel.Network)
				if dryRun {
					label = fmt.Sprintf("Deploy %d implementations to %s for a dry run", len(plan.Upgrades), channel.Network)
				}
				if !confirmPrompt(label) {
					fmt.Fprintln(os.Stderr, render.FormatWarning("Release cancelled"))
					return nil
				}
			}

			result, runErr := app.RunRelease.Execute(ctx, usecase.RunReleaseParams{
				Plan:   plan,
				DryRun: dryRun,
			})
			sess.stopProgress()

			if err := renderer.RenderRelease(result, runErr); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Deploy and validate implementations, but don't execute the batch")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// needsConfirmation reports whether the user must approve before anything
// leaves for a live network. A dry run only sends the implementation
// deployments, so it needs approval when the plan has upgrades.
func needsConfirmation(env models.Environment, dryRun, deploys, skip bool) bool {
	if env != models.EnvironmentLive || skip {
		return false
	}
	return !dryRun || deploys
}

// confirmPrompt asks the user a yes/no question and returns their choice.
func confirmPrompt(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := prompt.Run()
	return err == nil
}
