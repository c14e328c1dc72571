package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-release/internal/cli/render"
)

// NewChannelCmd creates the channel command
func NewChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Show the environment and execution channel for a network",
		Long: `Show how a release on the selected network would be executed, along
with the manifest files it reads and writes.

Examples:
  treb-release channel --network mainnet
  treb-release channel --network mainnet --fork`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := getSession(cmd)
			if err != nil {
				return err
			}

			result, err := sess.app.ShowChannel.Run(cmd.Context())
			if err != nil {
				return err
			}

			renderer := render.NewChannelRenderer(os.Stdout)
			return renderer.RenderChannel(result)
		},
	}

	return cmd
}
