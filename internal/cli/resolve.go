package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-release/internal/app"
	"github.com/trebuchet-org/treb-release/internal/cli/render"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// NewResolveCmd creates the resolve command
func NewResolveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve [name]",
		Short: "Show the address, implementation and ABI of a contract",
		Long: `Resolve a logical contract by name. Proxied contracts show the proxy
address and the implementation currently stored in the EIP-1967 slot,
which is read from the chain on every call.

Without a name, or when the name is unknown but close to existing ones,
an interactive picker is shown (unless --non-interactive).

Examples:
  treb-release resolve SeniorPool --network mainnet
  treb-release resolve SeniorPool --network mainnet --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := getSession(cmd)
			if err != nil {
				return err
			}
			sess.stopProgress()

			var name string
			if len(args) > 0 {
				name = args[0]
			}

			contract, err := resolveOrSelect(cmd.Context(), sess.app, name)
			if err != nil {
				return err
			}

			renderer := render.NewResolveRenderer(os.Stdout, asJSON)
			return renderer.RenderContract(contract)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")

	return cmd
}

// resolveOrSelect resolves name, falling back to the interactive picker when
// no name was given or the name only has fuzzy matches
func resolveOrSelect(ctx context.Context, a *app.App, name string) (*models.LogicalContract, error) {
	if name == "" {
		names, err := a.ResolveContract.Names(ctx)
		if err != nil {
			return nil, err
		}
		if name, err = a.Selector.SelectContract(ctx, names, "Select a contract"); err != nil {
			return nil, err
		}
		return a.ResolveContract.Resolve(ctx, name)
	}

	contract, err := a.ResolveContract.Resolve(ctx, name)
	var unknown domain.UnknownContractError
	if !errors.As(err, &unknown) || len(unknown.Suggestions) == 0 || a.Config.NonInteractive {
		return contract, err
	}

	selected, selectErr := a.Selector.SelectContract(ctx, unknown.Suggestions, "Unknown contract "+name+", did you mean")
	if selectErr != nil {
		return nil, err
	}
	return a.ResolveContract.Resolve(ctx, selected)
}
