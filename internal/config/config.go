// Package config provides configuration management for buildlens using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the BUILDLENS_ prefix, defaults and validation. It covers the build
// host (command, output directory), the watch loop, the two build observers
// and the optional event stream.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/build"
	"github.com/conneroisu/buildlens/internal/reporter"
	"github.com/spf13/viper"
)

type Config struct {
	Build    BuildConfig    `yaml:"build" mapstructure:"build"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Reporter ReporterConfig `yaml:"reporter" mapstructure:"reporter"`
	Auditor  AuditorConfig  `yaml:"auditor" mapstructure:"auditor"`
	Stream   StreamConfig   `yaml:"stream" mapstructure:"stream"`
}

type BuildConfig struct {
	Command   string   `yaml:"command" mapstructure:"command"`
	WorkDir   string   `yaml:"work_dir" mapstructure:"work_dir"`
	OutputDir string   `yaml:"output_dir" mapstructure:"output_dir"`
	Ignore    []string `yaml:"ignore" mapstructure:"ignore"`
}

type WatchConfig struct {
	Paths    []string      `yaml:"paths" mapstructure:"paths"`
	Ignore   []string      `yaml:"ignore" mapstructure:"ignore"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type ReporterConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

type AuditorConfig struct {
	Name           string `yaml:"name" mapstructure:"name"`
	ThresholdBytes int64  `yaml:"threshold_bytes" mapstructure:"threshold_bytes"`
	Verbose        bool   `yaml:"verbose" mapstructure:"verbose"`
}

type StreamConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("build.command", "")
	v.SetDefault("build.work_dir", ".")
	v.SetDefault("build.output_dir", "dist")
	v.SetDefault("build.ignore", []string{})

	v.SetDefault("watch.paths", []string{"."})
	v.SetDefault("watch.ignore", []string{"node_modules", ".git", ".umi*", "*.log"})
	v.SetDefault("watch.debounce", 300*time.Millisecond)

	v.SetDefault("reporter.name", reporter.DefaultName)
	v.SetDefault("reporter.verbose", true)

	v.SetDefault("auditor.name", audit.DefaultName)
	v.SetDefault("auditor.threshold_bytes", audit.DefaultThresholdBytes)
	v.SetDefault("auditor.verbose", true)

	v.SetDefault("stream.addr", "localhost:7331")
	v.SetDefault("stream.allowed_origins", []string{"localhost:*", "127.0.0.1:*"})
}

// BindEnv makes BUILDLENS_SECTION_KEY environment variables override
// section.key settings on v
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BUILDLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(newEnvKeyReplacer())
}

func newEnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

// Load reads the configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults and validation
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through env vars or flags arrive as strings
	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// PipelineOptions converts the build section into build host options
func (c *Config) PipelineOptions() build.Options {
	outputDir := c.Build.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(c.Build.WorkDir, outputDir)
	}
	return build.Options{
		Command:   c.Build.Command,
		WorkDir:   c.Build.WorkDir,
		OutputDir: outputDir,
		Ignore:    c.Build.Ignore,
	}
}

// Options converts the section into a reporter configuration
func (c ReporterConfig) Options() reporter.Config {
	return reporter.Config{Name: c.Name, Verbose: c.Verbose}
}

// Options converts the section into an auditor configuration
func (c AuditorConfig) Options() audit.Config {
	return audit.Config{Name: c.Name, ThresholdBytes: c.ThresholdBytes, Verbose: c.Verbose}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	for _, path := range config.Watch.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("watch config: invalid path '%s': %w", path, err)
		}
	}
	if err := validateName(config.Reporter.Name); err != nil {
		return fmt.Errorf("reporter config: %w", err)
	}
	if err := validateName(config.Auditor.Name); err != nil {
		return fmt.Errorf("auditor config: %w", err)
	}
	if config.Auditor.ThresholdBytes <= 0 {
		return fmt.Errorf("auditor config: threshold_bytes must be positive, got %d", config.Auditor.ThresholdBytes)
	}
	if strings.TrimSpace(config.Stream.Addr) == "" {
		return fmt.Errorf("stream config: addr cannot be empty")
	}
	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	if err := validatePath(config.OutputDir); err != nil {
		return fmt.Errorf("invalid output_dir '%s': %w", config.OutputDir, err)
	}
	if config.WorkDir != "" {
		if err := validatePath(config.WorkDir); err != nil {
			return fmt.Errorf("invalid work_dir '%s': %w", config.WorkDir, err)
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// validateName checks a tap name: alphanumeric with dashes/underscores
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return fmt.Errorf("name contains invalid character: %s", name)
		}
	}
	return nil
}
