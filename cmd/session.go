package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/build"
	"github.com/conneroisu/buildlens/internal/config"
	"github.com/conneroisu/buildlens/internal/logging"
	"github.com/conneroisu/buildlens/internal/reporter"
	"github.com/conneroisu/buildlens/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// session is a build host with the standard observers attached.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	pipeline *build.Pipeline
	reporter *reporter.Reporter
	auditor  *audit.Auditor
	metrics  *build.BuildMetrics
}

// newSession loads the configuration and wires the reporter, the auditor and
// build metrics into a new pipeline. Extra auditor options are appended to
// the defaults.
func newSession(cmd *cobra.Command, auditOpts ...audit.Option) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	pipeline := build.NewPipeline(cfg.PipelineOptions(), logger)
	metrics := build.NewBuildMetrics()
	metrics.Attach(pipeline)

	opts := append([]audit.Option{audit.WithOutput(cmd.OutOrStdout())}, auditOpts...)

	return &session{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		reporter: reporter.Attach(pipeline, cfg.Reporter.Options(), logger),
		auditor:  audit.Attach(pipeline, cfg.Auditor.Options(), logger, opts...),
		metrics:  metrics,
	}, nil
}

// newWatcher builds a file watcher over the configured watch paths that
// rebuilds through s. The output directory is always excluded so a build
// never triggers itself.
func (s *session) newWatcher(cmd *cobra.Command) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(s.cfg.Watch.Debounce, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.ExcludeDirFilter(s.cfg.PipelineOptions().OutputDir))
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.IgnoreFilter(s.cfg.Watch.Ignore))

	if s.cfg.Reporter.Verbose {
		title := cases.Title(language.English)
		out := cmd.ErrOrStderr()
		fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
			for _, ev := range events {
				fmt.Fprintf(out, "%s: %s\n", title.String(ev.Type.String()), ev.Path)
			}
			return nil
		})
	}
	fw.AddHandler(watcher.RebuildHandler(s.pipeline))

	for _, path := range s.cfg.Watch.Paths {
		root := path
		if !filepath.IsAbs(root) {
			root = filepath.Join(s.cfg.Build.WorkDir, root)
		}
		if err := fw.AddRecursive(root); err != nil {
			_ = fw.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	return fw, nil
}

// watch runs one build, then rebuilds on every debounced batch of changes
// until ctx is cancelled.
func (s *session) watch(ctx context.Context, cmd *cobra.Command) error {
	fw, err := s.newWatcher(cmd)
	if err != nil {
		return err
	}
	defer fw.Stop()

	// The initial build's failure has already been reported.
	_, _ = s.pipeline.Run(ctx)

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	s.logger.Info(ctx, "watching for changes", "paths", s.cfg.Watch.Paths)

	<-ctx.Done()

	snapshot := s.metrics.GetSnapshot()
	s.logger.Info(context.Background(), "stopped watching",
		"builds", snapshot.TotalBuilds,
		"failed", snapshot.FailedBuilds,
		"average_duration", snapshot.AverageDuration.Round(time.Millisecond).String(),
	)
	return nil
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// commandContext returns cmd's context, or Background when cmd was not
// started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
