package cmd

import (
	"fmt"
	"strings"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// formatValue is a pflag.Value restricted to the summary encodings.
type formatValue struct {
	format  *audit.Format
	allowed []audit.Format
}

var _ pflag.Value = (*formatValue)(nil)

func newFormatValue(p *audit.Format, def audit.Format, allowed ...audit.Format) *formatValue {
	*p = def
	return &formatValue{format: p, allowed: allowed}
}

func (f *formatValue) String() string {
	if f.format == nil {
		return ""
	}
	return string(*f.format)
}

func (f *formatValue) Set(s string) error {
	candidate := audit.Format(strings.ToLower(strings.TrimSpace(s)))
	for _, allowed := range f.allowed {
		if candidate == allowed {
			*f.format = candidate
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", f.choices())
}

func (f *formatValue) Type() string {
	return "format"
}

func (f *formatValue) choices() string {
	names := make([]string, len(f.allowed))
	for i, a := range f.allowed {
		names[i] = string(a)
	}
	return strings.Join(names, "|")
}

// addFormatFlag registers --format/-f on cmd.
func addFormatFlag(cmd *cobra.Command, p *audit.Format, def audit.Format, allowed ...audit.Format) {
	v := newFormatValue(p, def, allowed...)
	cmd.Flags().VarP(v, "format", "f", "Output format ("+v.choices()+")")
}

// addBuildFlags registers the flags that override the build.* and auditor.*
// settings. They are bound to viper in bindBuildFlags, which each command
// runs as its PreRunE so only the running command's flags are bound.
func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("command", "c", "", "Build command to run before collecting output")
	flags.StringP("output-dir", "o", "", "Build output directory to audit")
	flags.Int64("threshold", 0, "Oversize threshold in bytes")
	flags.BoolP("quiet", "q", false, "Only report failures")
}

// bindBuildFlags binds the build flags to their viper keys. A flag beats
// the file and the environment only when given.
func bindBuildFlags(cmd *cobra.Command, args []string) error {
	bindings := map[string]string{
		"build.command":           "command",
		"build.output_dir":        "output-dir",
		"auditor.threshold_bytes": "threshold",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		viper.Set("reporter.verbose", false)
		viper.Set("auditor.verbose", false)
	}
	return nil
}
