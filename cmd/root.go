// Package cmd provides the command-line interface for buildlens.
//
// Configuration is read, highest priority first, from command-line flags,
// BUILDLENS_<SECTION>_<KEY> environment variables and a YAML file. The file
// is the --config flag, else BUILDLENS_CONFIG_FILE, else .buildlens.yml in
// the current directory.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/buildlens/internal/config"
	"github.com/conneroisu/buildlens/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buildlens",
	Short: "Compilation reporting and asset size auditing for frontend builds",
	Long: `buildlens runs a frontend build command, reports its lifecycle and audits
the size of every file it emits.

Key Features:
  • Compilation start/finish/failure reporting with elapsed time
  • Per-file output sizes, sorted largest first, with oversize warnings
  • Rebuild on source changes
  • Lifecycle events streamed as JSON over WebSocket

Quick Start:
  buildlens build --command "npm run build" --output-dir dist
  buildlens watch                 Rebuild and report on every change
  buildlens audit dist            Audit an existing output directory
  buildlens serve-events          Watch and stream events to dashboards`,
	SilenceUsage:      true,
	PersistentPreRunE: bindLogFlags,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .buildlens.yml, can also use BUILDLENS_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// bindLogFlags runs before every subcommand.
func bindLogFlags(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	return viper.BindPFlag("log.format", cmd.Flags().Lookup("log-format"))
}

// initConfig picks the config file and enables BUILDLENS_ environment
// overrides. A missing or unreadable file leaves the defaults in place.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("BUILDLENS_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".buildlens")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log.* settings. Logs go to
// w, which is normally the command's stderr.
func newLogger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	format := viper.GetString("log.format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: w,
	}), nil
}
