package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-release/internal/cli/render"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [names...]",
		Short: "Update manifest implementations from the chain",
		Long: `Read the EIP-1967 implementation slot of proxied contracts and record
any change in the manifest. Use this after a relayed proposal has been
signed and executed by the multisig.

Without names, every proxied contract in the manifest is synced.

Examples:
  treb-release sync --network mainnet
  treb-release sync SeniorPool Fidu --network mainnet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := getSession(cmd)
			if err != nil {
				return err
			}

			results, err := sess.app.SyncManifest.Execute(cmd.Context(), args)
			sess.stopProgress()
			if err != nil {
				return err
			}

			renderer := render.NewSyncRenderer(os.Stdout)
			return renderer.RenderSyncResult(results)
		},
	}

	return cmd
}
