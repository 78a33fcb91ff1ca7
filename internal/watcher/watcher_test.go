package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bferrors "github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestEventTypeOf(t *testing.T) {
	assert.Equal(t, EventTypeCreated, eventTypeOf(fsnotify.Create))
	assert.Equal(t, EventTypeModified, eventTypeOf(fsnotify.Write))
	assert.Equal(t, EventTypeDeleted, eventTypeOf(fsnotify.Remove))
	assert.Equal(t, EventTypeRenamed, eventTypeOf(fsnotify.Rename))
	assert.Equal(t, EventTypeCreated, eventTypeOf(fsnotify.Create|fsnotify.Write))
}

func TestDebouncerGroupsAndDeduplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(20 * time.Millisecond)
	go d.start(ctx)

	base := time.Unix(100, 0)
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "src/b.ts", ModTime: base})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "src/a.ts", ModTime: base})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "src/b.ts", ModTime: base.Add(time.Second)})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "src/a.ts", batch[0].Path)
		assert.Equal(t, "src/b.ts", batch[1].Path)
		assert.Equal(t, base.Add(time.Second), batch[1].ModTime)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"git dir", NoGitFilter, "repo/.git/HEAD", false},
		{"gitignore file", NoGitFilter, "repo/.gitignore", true},
		{"node_modules", NoNodeModulesFilter, "node_modules/react/index.js", false},
		{"source", NoNodeModulesFilter, "src/Button/index.tsx", true},
		{"output dir itself", ExcludeDirFilter("dist"), "dist", false},
		{"inside output dir", ExcludeDirFilter("dist"), "dist/umi.js", false},
		{"sibling with prefix", ExcludeDirFilter("dist"), "distribution/a.js", true},
		{"ignore by segment", IgnoreFilter([]string{".umi*"}), "src/.umi-production/core.ts", false},
		{"ignore by extension", IgnoreFilter([]string{"*.log"}), "build.log", false},
		{"not ignored", IgnoreFilter([]string{"*.log"}), "src/index.ts", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter(tt.path))
		})
	}
}

func TestValidatePath(t *testing.T) {
	_, err := validatePath("")
	assert.Error(t, err)

	_, err = validatePath("../outside")
	assert.Error(t, err)

	clean, err := validatePath("./src/")
	require.NoError(t, err)
	assert.Equal(t, "src", clean)
}

type fakeRebuilder struct {
	mutex       sync.Mutex
	invalidated []string
	runs        int
	err         error
}

func (f *fakeRebuilder) Invalidate(fileName string, changeTime time.Time) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.invalidated = append(f.invalidated, fileName)
}

func (f *fakeRebuilder) Run(ctx context.Context) (*hooks.CompileFinished, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.runs++
	return &hooks.CompileFinished{}, f.err
}

func (f *fakeRebuilder) snapshot() ([]string, int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string{}, f.invalidated...), f.runs
}

func TestRebuildHandler(t *testing.T) {
	events := []ChangeEvent{{Path: "a.ts"}, {Path: "b.ts"}}

	t.Run("invalidates each file then builds once", func(t *testing.T) {
		r := &fakeRebuilder{}
		require.NoError(t, RebuildHandler(r)(context.Background(), events))

		invalidated, runs := r.snapshot()
		assert.Equal(t, []string{"a.ts", "b.ts"}, invalidated)
		assert.Equal(t, 1, runs)
	})

	t.Run("host build failures are not repeated", func(t *testing.T) {
		r := &fakeRebuilder{err: bferrors.HostBuild("build", errors.New("exit 1"))}
		assert.NoError(t, RebuildHandler(r)(context.Background(), events))
	})

	t.Run("other failures are returned", func(t *testing.T) {
		r := &fakeRebuilder{err: errors.New("unexpected")}
		assert.Error(t, RebuildHandler(r)(context.Background(), events))
	})
}

func TestFileWatcherTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	outDir := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	require.NoError(t, os.MkdirAll(outDir, 0755))

	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(ExcludeDirFilter(outDir))
	fw.AddFilter(NoGitFilter)
	require.NoError(t, fw.AddRecursive(dir))

	r := &fakeRebuilder{}
	fw.AddHandler(RebuildHandler(r))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(outDir, "umi.js"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "index.ts"), []byte("export {}"), 0644))

	require.Eventually(t, func() bool {
		_, runs := r.snapshot()
		return runs >= 1
	}, 3*time.Second, 10*time.Millisecond)

	invalidated, _ := r.snapshot()
	assert.Contains(t, invalidated, filepath.Join(srcDir, "index.ts"))
	for _, name := range invalidated {
		assert.NotContains(t, name, "umi.js")
	}
}
