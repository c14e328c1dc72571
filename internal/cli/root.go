package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-release/internal/adapters/progress"
	"github.com/trebuchet-org/treb-release/internal/app"
	"github.com/trebuchet-org/treb-release/internal/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// sessionKey is the context key for the wired app of one command
	sessionKey contextKey = "session"
)

// session holds what a command needs from the wired application
type session struct {
	app     *app.App
	spinner *progress.SpinnerProgress
	cleanup func()
}

// stopProgress stops the spinner before a command prints its result
func (s *session) stopProgress() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sess *session
	rootCmd := NewRootCmd(func(s *session) { sess = s })
	err := rootCmd.ExecuteContext(ctx)

	if sess != nil {
		sess.stopProgress()
		sess.cleanup()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCmd creates the root command. onSession receives the wired app so
// the caller can release it once the command is done.
func NewRootCmd(onSession func(*session)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treb-release",
		Short: "Upgrade proxied contracts and execute release effects",
		Long: `treb-release deploys new implementations for proxied contracts, checks
their storage layouts, and executes the collected effects as one batch:
directly on a local node, through a simulated Safe on a fork, or as a
relayed multisig proposal on a live network.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			v, err := config.SetupViper(projectRoot, cmd.Flags())
			if err != nil {
				return err
			}

			var sink usecase.ProgressSink = progress.NewNopSink()
			var spinner *progress.SpinnerProgress
			if !v.GetBool("non_interactive") && !v.GetBool("json") {
				spinner = progress.NewSpinnerProgress()
				sink = spinner
			}

			appInstance, cleanup, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			sess := &session{app: appInstance, spinner: spinner, cleanup: cleanup}
			if onSession != nil {
				onSession(sess)
			}

			ctx := context.WithValue(cmd.Context(), sessionKey, sess)
			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				sess.cleanup = func() {
					cancel()
					cleanup()
				}
			}
			cmd.SetContext(ctx)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable prompts and the progress spinner")
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network to use (e.g., mainnet, sepolia)")
	rootCmd.PersistentFlags().String("rpc-url", "", "RPC URL, overrides foundry.toml [rpc_endpoints]")
	rootCmd.PersistentFlags().Bool("fork", false, "Treat the node as a fork of the network")
	rootCmd.PersistentFlags().String("profile", "", "Foundry profile for artifacts (defaults to 'default')")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	releaseCmd := NewReleaseCmd()
	releaseCmd.GroupID = "main"
	rootCmd.AddCommand(releaseCmd)

	resolveCmd := NewResolveCmd()
	resolveCmd.GroupID = "main"
	rootCmd.AddCommand(resolveCmd)

	syncCmd := NewSyncCmd()
	syncCmd.GroupID = "management"
	rootCmd.AddCommand(syncCmd)

	channelCmd := NewChannelCmd()
	channelCmd.GroupID = "management"
	rootCmd.AddCommand(channelCmd)

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// getSession retrieves the wired session from the command context
func getSession(cmd *cobra.Command) (*session, error) {
	value := cmd.Context().Value(sessionKey)
	if value == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	sess, ok := value.(*session)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return sess, nil
}
