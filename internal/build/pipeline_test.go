package build

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	bferrors "github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/conneroisu/buildlens/internal/testutils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out    []byte
	err    error
	calls  []string
	before func(ctx context.Context)
}

func (f *fakeRunner) Run(ctx context.Context, dir, command string) ([]byte, error) {
	f.calls = append(f.calls, command)
	if f.before != nil {
		f.before(ctx)
	}
	return f.out, f.err
}

type recordedEvents struct {
	kinds []string
}

func record(p hooks.Pipeline) *recordedEvents {
	r := &recordedEvents{}
	p.CompileStart().Tap("rec", func(hooks.CompileStarted) { r.kinds = append(r.kinds, "start") })
	p.FileInvalidated().Tap("rec", func(ev hooks.FileInvalidated) { r.kinds = append(r.kinds, "invalid:"+ev.FileName) })
	p.OptimizeAssets().TapPromise("rec", func(context.Context, *hooks.AssetTable) error {
		r.kinds = append(r.kinds, "optimize")
		return nil
	})
	p.CompileFinish().Tap("rec", func(hooks.CompileFinished) { r.kinds = append(r.kinds, "finish") })
	p.CompileFailed().Tap("rec", func(ev hooks.CompileFailed) { r.kinds = append(r.kinds, "failed:"+ev.Message) })
	return r
}

func fixedClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	}
}

func newTestFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	testutils.WriteAsset(t, fs, "dist/umi.js", 150000)
	testutils.WriteAsset(t, fs, "dist/umi.css", 3000)
	testutils.WriteAsset(t, fs, "dist/static/logo.png", 12000)
	testutils.WriteAsset(t, fs, "dist/umi.js.map", 400000)
	return fs
}

func TestPipelineSuccessfulBuild(t *testing.T) {
	fs := newTestFs(t)
	runner := &fakeRunner{out: []byte("compiled")}
	start := time.Unix(100, 0)

	p := NewPipeline(Options{Command: "npm run build", OutputDir: "dist", Ignore: []string{"*.map"}}, nil,
		WithFs(fs), WithRunner(runner), WithClock(fixedClock(start, start.Add(2*time.Second))))
	rec := record(p)

	p.Invalidate("src/index.tsx", start)
	ev, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"invalid:src/index.tsx", "start", "optimize", "finish"}, rec.kinds)
	assert.Equal(t, []string{"npm run build"}, runner.calls)
	assert.Equal(t, 2*time.Second, ev.Duration())
	assert.Equal(t, []string{"static/logo.png", "umi.css", "umi.js"}, ev.Assets.Names())
	assert.Equal(t, 1, p.Builds())

	asset, ok := ev.Assets.Get("umi.js")
	require.True(t, ok)
	size, err := asset.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(150000), size)

	rc, err := asset.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Len(t, data, 150000)
}

func TestPipelineCommandFailure(t *testing.T) {
	runner := &fakeRunner{
		out: []byte("building...\nModule not found: Error: Can't resolve './Select'\n\n"),
		err: errors.New("exit status 1"),
	}
	p := NewPipeline(Options{Command: "npm run build", OutputDir: "dist"}, nil,
		WithFs(newTestFs(t)), WithRunner(runner))
	rec := record(p)

	ev, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, ev)
	assert.True(t, bferrors.IsKind(err, bferrors.KindHostBuild))
	assert.Equal(t, []string{"start", "failed:Module not found: Error: Can't resolve './Select'"}, rec.kinds)
}

func TestPipelineMissingOutputDir(t *testing.T) {
	p := NewPipeline(Options{OutputDir: "dist"}, nil, WithFs(afero.NewMemMapFs()))
	rec := record(p)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Len(t, rec.kinds, 2)
	assert.Equal(t, "start", rec.kinds[0])
	assert.Contains(t, rec.kinds[1], "failed:output directory")
}

func TestPipelineAsyncTapFailureFailsBuild(t *testing.T) {
	p := NewPipeline(Options{OutputDir: "dist"}, nil, WithFs(newTestFs(t)))
	rec := record(p)
	p.OptimizeAssets().TapPromise("compressor", func(context.Context, *hooks.AssetTable) error {
		return errors.New("gzip failed")
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start", "optimize", "failed:compressor: gzip failed"}, rec.kinds)
}

func TestPipelineCancellationSuppressesReports(t *testing.T) {
	t.Run("cancelled during command", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		runner := &fakeRunner{err: errors.New("signal: killed"), before: func(context.Context) { cancel() }}
		p := NewPipeline(Options{Command: "sleep 10", OutputDir: "dist"}, nil,
			WithFs(newTestFs(t)), WithRunner(runner))
		rec := record(p)

		_, err := p.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"start"}, rec.kinds)
	})

	t.Run("cancelled during async hook", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewPipeline(Options{OutputDir: "dist"}, nil, WithFs(newTestFs(t)))
		rec := record(p)
		p.OptimizeAssets().TapPromise("slow", func(ctx context.Context, _ *hooks.AssetTable) error {
			cancel()
			return ctx.Err()
		})

		_, err := p.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"start", "optimize"}, rec.kinds)
	})
}

func TestCollectAssets(t *testing.T) {
	fs := newTestFs(t)

	t.Run("relative slash names in lexical order", func(t *testing.T) {
		table, err := CollectAssets(fs, "dist", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"static/logo.png", "umi.css", "umi.js", "umi.js.map"}, table.Names())
	})

	t.Run("ignore matches base name and path", func(t *testing.T) {
		table, err := CollectAssets(fs, "dist", []string{"*.map", "static/*"})
		require.NoError(t, err)
		assert.Equal(t, []string{"umi.css", "umi.js"}, table.Names())
	})

	t.Run("size accessor reports stat failure", func(t *testing.T) {
		table, err := CollectAssets(fs, "dist", nil)
		require.NoError(t, err)
		require.NoError(t, fs.Remove("dist/umi.css"))

		asset, ok := table.Get("umi.css")
		require.True(t, ok)
		_, err = asset.Size()
		assert.Error(t, err)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := CollectAssets(fs, "", nil)
		assert.Error(t, err)

		_, err = CollectAssets(fs, "dist/umi.js", nil)
		assert.Error(t, err)
	})
}

func TestBuildMetrics(t *testing.T) {
	p := NewPipeline(Options{OutputDir: "dist"}, nil, WithFs(newTestFs(t)))
	metrics := NewBuildMetrics()
	metrics.Attach(p)

	p.Invalidate("a.ts", time.Now())
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	p.OptimizeAssets().TapPromise("broken", func(context.Context, *hooks.AssetTable) error {
		return errors.New("nope")
	})
	_, err = p.Run(context.Background())
	require.Error(t, err)

	snap := metrics.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalBuilds)
	assert.Equal(t, int64(1), snap.SuccessfulBuilds)
	assert.Equal(t, int64(1), snap.FailedBuilds)
	assert.Equal(t, int64(1), snap.Invalidations)
	assert.Equal(t, 4, snap.LastAssetCount)
	assert.InDelta(t, 50.0, metrics.GetSuccessRate(), 0.001)

	metrics.Reset()
	assert.Equal(t, int64(0), metrics.GetSnapshot().TotalBuilds)
	assert.Equal(t, 0.0, metrics.GetSuccessRate())
}

func TestShellRunner(t *testing.T) {
	out, err := ShellRunner{}.Run(context.Background(), t.TempDir(), "echo hello && echo oops 1>&2")
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")
	assert.Contains(t, string(out), "oops")

	_, err = ShellRunner{}.Run(context.Background(), t.TempDir(), "exit 3")
	assert.Error(t, err)
}
