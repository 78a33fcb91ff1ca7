package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	versionFormat   audit.Format
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for buildlens: version, git commit, build
time, Go version and target platform.

Examples:
  buildlens version              # One-line version
  buildlens version --detailed   # Every known field
  buildlens version -f json      # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd, &versionFormat, audit.FormatTable, audit.FormatTable, audit.FormatJSON, audit.FormatYAML)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show the version number only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFormat {
	case audit.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case audit.FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(info)
	}

	switch {
	case versionShort:
		_, err := fmt.Fprintln(out, info.Version)
		return err
	case versionDetailed:
		_, err := fmt.Fprintln(out, info.Detailed())
		return err
	default:
		_, err := fmt.Fprintln(out, info.String())
		return err
	}
}
