// Package reporter logs the lifecycle of a build: when it starts, how long it
// took, how many files it produced, which source change triggered it and why
// it failed. It keeps no state between callbacks.
package reporter

import (
	"context"
	"time"

	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/conneroisu/buildlens/internal/logging"
)

// DefaultName is the tap name used when Config.Name is empty.
const DefaultName = "CompilationReporter"

// Config is fixed at attach time.
type Config struct {
	Name    string `yaml:"name" json:"name"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns the reporter defaults.
func DefaultConfig() Config {
	return Config{Name: DefaultName, Verbose: true}
}

// Reporter logs compilation lifecycle events.
type Reporter struct {
	cfg    Config
	logger logging.Logger
}

// New creates a reporter. An empty name falls back to DefaultName.
func New(cfg Config, logger logging.Logger) *Reporter {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Reporter{
		cfg:    cfg,
		logger: logger.WithComponent(cfg.Name),
	}
}

// Attach creates a reporter and taps it into p.
func Attach(p hooks.Pipeline, cfg Config, logger logging.Logger) *Reporter {
	r := New(cfg, logger)
	r.Attach(p)
	return r
}

// Config returns the reporter configuration.
func (r *Reporter) Config() Config {
	return r.cfg
}

// Attach registers the reporter's callbacks. Attaching twice under the same
// name leaves a single set of callbacks in place.
func (r *Reporter) Attach(p hooks.Pipeline) {
	name := r.TapName()
	p.CompileStart().Tap(name, r.OnCompileStart)
	p.CompileFinish().Tap(name, r.OnCompileFinish)
	p.CompileFailed().Tap(name, r.OnCompileFailed)
	p.FileInvalidated().Tap(name, r.OnFileInvalidated)
	p.OptimizeAssets().TapPromise(name, r.OnOptimizeAssets)
}

// TapName is the key the reporter registers under. It is scoped to reporters
// so an auditor or another tap sharing the configured name cannot replace it.
func (r *Reporter) TapName() string {
	return "reporter:" + r.cfg.Name
}

// OnCompileStart announces a new compilation.
func (r *Reporter) OnCompileStart(ev hooks.CompileStarted) {
	if !r.cfg.Verbose {
		return
	}
	logging.Guard(func() {
		r.logger.Info(context.Background(), "compilation started")
	})
}

// OnCompileFinish logs elapsed time and output count. A negative duration is
// reported verbatim with a warning.
func (r *Reporter) OnCompileFinish(ev hooks.CompileFinished) {
	if !r.cfg.Verbose {
		return
	}
	logging.Guard(func() {
		ctx := context.Background()
		elapsed := ev.Duration()

		r.logger.Info(ctx, "compilation finished",
			"duration_ms", elapsed.Milliseconds(),
			"duration", elapsed.String(),
			"output_files", ev.OutputFileCount(),
		)
		if elapsed < 0 {
			r.logger.Warn(ctx, nil, "compilation finished before it started; host reported inconsistent timestamps",
				"duration_ms", elapsed.Milliseconds(),
				"start_time", ev.StartTime.Format(time.RFC3339Nano),
				"end_time", ev.EndTime.Format(time.RFC3339Nano),
			)
		}
	})
}

// OnCompileFailed always logs the failure, verbose or not.
func (r *Reporter) OnCompileFailed(ev hooks.CompileFailed) {
	logging.Guard(func() {
		r.logger.Error(context.Background(), ev.Err, "compilation failed", "message", ev.Message)
	})
}

// OnFileInvalidated logs the change that triggered a rebuild.
func (r *Reporter) OnFileInvalidated(ev hooks.FileInvalidated) {
	if !r.cfg.Verbose {
		return
	}
	logging.Guard(func() {
		r.logger.Info(context.Background(), "file changed",
			"file", ev.FileName,
			"change_time", ev.ChangeTime.Format(time.RFC3339Nano),
		)
	})
}

// OnOptimizeAssets logs how many assets are about to be processed. It never
// fails the build.
func (r *Reporter) OnOptimizeAssets(ctx context.Context, assets *hooks.AssetTable) error {
	if !r.cfg.Verbose {
		return nil
	}
	logging.Guard(func() {
		r.logger.Info(ctx, "processing assets", "count", assets.Len())
	})
	return nil
}
