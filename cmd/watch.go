package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild and report whenever sources change",
	Long: `Run the build once, then watch the configured paths and rebuild after every
debounced batch of changes. Each changed file is reported before the
rebuild it triggers. The output directory is never watched.

Examples:
  buildlens watch                     # Watch the configured paths
  buildlens watch -c "npm run build"  # Custom build command
  buildlens watch --quiet             # Failures only`,
	Args:    cobra.NoArgs,
	PreRunE: bindBuildFlags,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBuildFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.watch(ctx, cmd)
}
