package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Run the build once and report on it",
	Long: `Run the configured build command, collect the output directory and report
the compilation lifecycle and per-file output sizes.

The command exits non-zero when the build fails; oversized files only
produce warnings.

Examples:
  buildlens build                                  # Use .buildlens.yml
  buildlens build -c "npm run build" -o dist       # Explicit command and output
  buildlens build --threshold 51200                # Flag files over 50 KB
  buildlens build --quiet                          # Failures only`,
	Args:    cobra.NoArgs,
	PreRunE: bindBuildFlags,
	RunE:    runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	if _, err := s.pipeline.Run(commandContext(cmd)); err != nil {
		// The reporter has already logged the failure.
		cmd.SilenceErrors = true
		return &exitError{code: 1, err: err}
	}
	return nil
}
