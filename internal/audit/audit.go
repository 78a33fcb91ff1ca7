// Package audit computes the size distribution of a finished build's output.
//
// An Auditor resolves every asset's size exactly once, sorts the results by
// size (largest first, ties in enumeration order), totals them and flags the
// ones strictly larger than the configured threshold. Assets whose size cannot
// be resolved are left out of the list, the total and the oversized count,
// and are reported as warnings instead. The computed Summary is returned to
// the caller whether or not a table is printed.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/conneroisu/buildlens/internal/logging"
)

const (
	// DefaultName is the tap name used when Config.Name is empty.
	DefaultName = "AssetSizeAuditor"
	// DefaultThresholdBytes is 100 KiB.
	DefaultThresholdBytes int64 = 100 * 1024
)

// Config is fixed at attach time.
type Config struct {
	Name           string `yaml:"name" json:"name"`
	ThresholdBytes int64  `yaml:"threshold_bytes" json:"threshold_bytes"`
	Verbose        bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns the auditor defaults.
func DefaultConfig() Config {
	return Config{Name: DefaultName, ThresholdBytes: DefaultThresholdBytes, Verbose: true}
}

// AssetRecord is one resolved asset.
type AssetRecord struct {
	Name      string `json:"name" yaml:"name"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Oversized bool   `json:"oversized" yaml:"oversized"`
	// Entry marks assets referenced from an HTML output.
	Entry bool `json:"entry,omitempty" yaml:"entry,omitempty"`
}

// AssetFailure is an asset whose size could not be resolved.
type AssetFailure struct {
	Name  string `json:"name" yaml:"name"`
	Error string `json:"error" yaml:"error"`
	Err   error  `json:"-" yaml:"-"`
}

// Summary is the result of one audit.
type Summary struct {
	Assets         []AssetRecord  `json:"assets" yaml:"assets"`
	TotalBytes     int64          `json:"total_bytes" yaml:"total_bytes"`
	OversizedCount int            `json:"oversized_count" yaml:"oversized_count"`
	ThresholdBytes int64          `json:"threshold_bytes" yaml:"threshold_bytes"`
	Failed         []AssetFailure `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Oversized returns the oversized records in report order.
func (s Summary) Oversized() []AssetRecord {
	var out []AssetRecord
	for _, r := range s.Assets {
		if r.Oversized {
			out = append(out, r)
		}
	}
	return out
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithOutput sets where the verbose table is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Auditor) {
		a.out = w
	}
}

// WithSummaryHandler registers fn to receive every summary computed on
// compileFinish, printed or not.
func WithSummaryHandler(fn func(Summary)) Option {
	return func(a *Auditor) {
		a.onSummary = fn
	}
}

// Auditor reports asset sizes when a compilation finishes.
type Auditor struct {
	cfg       Config
	logger    logging.Logger
	out       io.Writer
	renderer  *lipgloss.Renderer
	onSummary func(Summary)
}

// New creates an auditor. Empty name and non-positive threshold fall back to
// the defaults.
func New(cfg Config, logger logging.Logger, opts ...Option) *Auditor {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.ThresholdBytes <= 0 {
		cfg.ThresholdBytes = DefaultThresholdBytes
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	a := &Auditor{
		cfg:    cfg,
		logger: logger.WithComponent(cfg.Name),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.renderer = lipgloss.NewRenderer(a.out)
	a.out = logging.NewSafeWriter(a.out, nil)
	return a
}

// Attach creates an auditor and taps it into p.
func Attach(p hooks.Pipeline, cfg Config, logger logging.Logger, opts ...Option) *Auditor {
	a := New(cfg, logger, opts...)
	a.Attach(p)
	return a
}

// Config returns the auditor configuration.
func (a *Auditor) Config() Config {
	return a.cfg
}

// Attach registers the auditor on compileFinish.
func (a *Auditor) Attach(p hooks.Pipeline) {
	p.CompileFinish().Tap(a.TapName(), a.OnCompileFinish)
}

// TapName is the key the auditor registers under, scoped to auditors.
func (a *Auditor) TapName() string {
	return "auditor:" + a.cfg.Name
}

// OnCompileFinish audits the finished asset table and prints the table when
// verbose.
func (a *Auditor) OnCompileFinish(ev hooks.CompileFinished) {
	logging.Guard(func() {
		summary := a.Audit(ev.Assets)
		if a.cfg.Verbose {
			_ = renderTable(a.out, a.renderer, a.cfg.Name, summary)
		}
		if a.onSummary != nil {
			a.onSummary(summary)
		}
	})
}

// Audit resolves, sorts and totals the assets of table. A nil or empty table
// yields an empty summary.
func (a *Auditor) Audit(table *hooks.AssetTable) Summary {
	ctx := context.Background()
	assets := table.All()
	collector := errors.NewErrorCollector()

	summary := Summary{
		Assets:         make([]AssetRecord, 0, len(assets)),
		ThresholdBytes: a.cfg.ThresholdBytes,
	}

	for _, asset := range assets {
		size, err := resolveSize(asset)
		if err != nil {
			collector.Add(errors.Diagnostic("size", asset.Name, err))
			logging.Guard(func() {
				a.logger.Warn(ctx, err, "asset size unavailable, excluded from report", "asset", asset.Name)
			})
			continue
		}
		summary.Assets = append(summary.Assets, AssetRecord{
			Name:      asset.Name,
			SizeBytes: size,
			Oversized: size > a.cfg.ThresholdBytes,
		})
	}

	entries := findEntries(assets, func(name string, err error) {
		logging.Guard(func() {
			a.logger.Warn(ctx, err, "could not scan HTML output for entry assets", "asset", name)
		})
	})
	for i := range summary.Assets {
		summary.Assets[i].Entry = entries[summary.Assets[i].Name]
	}

	sort.SliceStable(summary.Assets, func(i, j int) bool {
		return summary.Assets[i].SizeBytes > summary.Assets[j].SizeBytes
	})

	for _, r := range summary.Assets {
		summary.TotalBytes += r.SizeBytes
		if r.Oversized {
			summary.OversizedCount++
		}
	}

	for _, e := range collector.ByKind(errors.KindDiagnostic) {
		summary.Failed = append(summary.Failed, AssetFailure{
			Name:  e.Subject,
			Error: e.Err.Error(),
			Err:   e,
		})
	}

	return summary
}

// resolveSize calls the accessor once, converting panics and negative sizes
// into errors.
func resolveSize(asset hooks.Asset) (size int64, err error) {
	if asset.Size == nil {
		return 0, fmt.Errorf("no size accessor")
	}
	defer func() {
		if r := recover(); r != nil {
			size, err = 0, errors.Recovered(r)
		}
	}()

	size, err = asset.Size()
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, fmt.Errorf("negative size %d", size)
	}
	return size, nil
}
