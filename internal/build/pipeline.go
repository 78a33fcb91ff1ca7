// Package build hosts a build: it runs the configured command, collects the
// output directory into an asset table and fires the lifecycle hooks that
// observers attach to.
//
// Hooks fire from the goroutine calling Run, in the order
// compileStart → optimizeAssets → compileFinish | compileFailed, and builds
// are serialized so no two callbacks from the same Pipeline overlap. If the
// context is cancelled mid-build, neither compileFinish nor compileFailed
// fires.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/conneroisu/buildlens/internal/logging"
	"github.com/spf13/afero"
)

// CommandRunner executes a build command.
type CommandRunner interface {
	Run(ctx context.Context, dir, command string) ([]byte, error)
}

// ShellRunner runs commands through sh -c.
type ShellRunner struct{}

// Run executes command in dir and returns its combined output.
func (ShellRunner) Run(ctx context.Context, dir, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Options configures a Pipeline.
type Options struct {
	// Command is run before collecting output. Empty means collect only.
	Command string
	// WorkDir is where Command runs.
	WorkDir string
	// OutputDir is collected after the command succeeds.
	OutputDir string
	// Ignore lists glob patterns of output files to leave out.
	Ignore []string
}

// Pipeline is a hook-driven build host.
type Pipeline struct {
	*hooks.Hooks

	opts   Options
	fs     afero.Fs
	runner CommandRunner
	logger logging.Logger
	now    func() time.Time
	mutex  sync.Mutex
	builds int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs replaces the filesystem output is collected from.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a build host.
func NewPipeline(opts Options, logger logging.Logger, options ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pipeline{
		Hooks:  hooks.NewHooks(),
		opts:   opts,
		fs:     afero.NewOsFs(),
		runner: ShellRunner{},
		logger: logger.WithComponent("pipeline"),
		now:    time.Now,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Builds returns how many builds have been started.
func (p *Pipeline) Builds() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.builds
}

// Invalidate fires fileInvalidated for a changed source file.
func (p *Pipeline) Invalidate(fileName string, changeTime time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.FileInvalidated().Call(hooks.FileInvalidated{FileName: fileName, ChangeTime: changeTime})
}

// Run performs one build. The returned error is the host build failure, if
// any; observers have already been told about it through compileFailed.
func (p *Pipeline) Run(ctx context.Context) (*hooks.CompileFinished, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.builds++
	start := p.now()
	p.logger.Debug(ctx, "build started", "build", p.builds, "command", p.opts.Command)
	p.CompileStart().Call(hooks.CompileStarted{Time: start})

	if p.opts.Command != "" {
		out, err := p.runner.Run(ctx, p.opts.WorkDir, p.opts.Command)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, p.fail(fmt.Errorf("%s: %w", p.opts.Command, err), failureMessage(out, err))
		}
	}

	table, err := CollectAssets(p.fs, p.opts.OutputDir, p.opts.Ignore)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, p.fail(err, err.Error())
	}

	if err := p.OptimizeAssets().Promise(ctx, table); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, p.fail(err, err.Error())
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ev := hooks.CompileFinished{StartTime: start, EndTime: p.now(), Assets: table}
	p.CompileFinish().Call(ev)
	p.logger.Debug(ctx, "build finished", "build", p.builds, "assets", table.Len())
	return &ev, nil
}

func (p *Pipeline) fail(err error, message string) error {
	p.CompileFailed().Call(hooks.CompileFailed{Message: message, Err: err})
	return errors.HostBuild("build", err)
}

// failureMessage picks the output line that best explains the failure,
// falling back to the process error when the command printed nothing.
func failureMessage(out []byte, err error) string {
	if message := errors.NewErrorParser().Summarize(string(out)); message != "" {
		return message
	}
	return err.Error()
}
