package cmd

import (
	"fmt"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/build"
	"github.com/conneroisu/buildlens/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var auditCmd = &cobra.Command{
	Use:     "audit [dir]",
	Aliases: []string{"a"},
	Short:   "Audit the sizes of an existing build output",
	Long: `Audit every file under a build output directory without running a build.
The directory defaults to build.output_dir from the configuration.

Files are listed largest first. Files strictly larger than the threshold are
flagged as oversized. With --fail-on-oversized the command exits with
status 2 when any file is oversized, which makes it usable as a CI gate.

Examples:
  buildlens audit                          # Audit the configured output dir
  buildlens audit dist --threshold 102400  # Explicit dir and threshold
  buildlens audit dist -f json             # Machine-readable summary
  buildlens audit dist --fail-on-oversized # Non-zero exit on oversized files`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindAuditFlags,
	RunE:    runAudit,
}

var (
	auditFormat          audit.Format
	auditFailOnOversized bool
)

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Int64("threshold", 0, "Oversize threshold in bytes")
	auditCmd.Flags().StringSlice("ignore", nil, "Glob patterns of files to leave out")
	auditCmd.Flags().BoolVar(&auditFailOnOversized, "fail-on-oversized", false, "Exit with status 2 when any file is oversized")
	addFormatFlag(auditCmd, &auditFormat, audit.FormatTable, audit.FormatTable, audit.FormatJSON, audit.FormatYAML)
}

func bindAuditFlags(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlag("auditor.threshold_bytes", cmd.Flags().Lookup("threshold")); err != nil {
		return fmt.Errorf("failed to bind --threshold: %w", err)
	}
	if err := viper.BindPFlag("build.ignore", cmd.Flags().Lookup("ignore")); err != nil {
		return fmt.Errorf("failed to bind --ignore: %w", err)
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	dir := cfg.PipelineOptions().OutputDir
	if len(args) == 1 {
		dir = args[0]
	}

	table, err := build.CollectAssets(afero.NewOsFs(), dir, cfg.Build.Ignore)
	if err != nil {
		return fmt.Errorf("failed to collect %s: %w", dir, err)
	}

	auditor := audit.New(cfg.Auditor.Options(), logger)
	summary := auditor.Audit(table)

	if err := audit.Encode(cmd.OutOrStdout(), auditor.Config().Name, summary, auditFormat); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if auditFailOnOversized && summary.OversizedCount > 0 {
		cmd.SilenceErrors = true
		return &exitError{
			code: 2,
			err:  fmt.Errorf("%d file(s) larger than %s KB", summary.OversizedCount, audit.KB(summary.ThresholdBytes)),
		}
	}
	return nil
}
