package testutils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/conneroisu/buildlens/internal/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// LogEntry is one call captured by RecordingLogger
type LogEntry struct {
	Level     logging.LogLevel
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

// RecordingLogger captures log calls for assertions
type RecordingLogger struct {
	component string
	fields    []interface{}
	sink      *entrySink
}

type entrySink struct {
	entries []LogEntry
	mutex   sync.Mutex
}

// NewRecordingLogger creates an empty recording logger
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &entrySink{}}
}

func (r *RecordingLogger) record(level logging.LogLevel, err error, msg string, fields []interface{}) {
	all := append(append([]interface{}{}, r.fields...), fields...)
	m := make(map[string]interface{}, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			m[key] = all[i+1]
		}
	}

	r.sink.mutex.Lock()
	defer r.sink.mutex.Unlock()
	r.sink.entries = append(r.sink.entries, LogEntry{
		Level:     level,
		Component: r.component,
		Message:   msg,
		Err:       err,
		Fields:    m,
	})
}

func (r *RecordingLogger) Debug(_ context.Context, msg string, fields ...interface{}) {
	r.record(logging.LevelDebug, nil, msg, fields)
}

func (r *RecordingLogger) Info(_ context.Context, msg string, fields ...interface{}) {
	r.record(logging.LevelInfo, nil, msg, fields)
}

func (r *RecordingLogger) Warn(_ context.Context, err error, msg string, fields ...interface{}) {
	r.record(logging.LevelWarn, err, msg, fields)
}

func (r *RecordingLogger) Error(_ context.Context, err error, msg string, fields ...interface{}) {
	r.record(logging.LevelError, err, msg, fields)
}

func (r *RecordingLogger) With(fields ...interface{}) logging.Logger {
	return &RecordingLogger{
		component: r.component,
		fields:    append(append([]interface{}{}, r.fields...), fields...),
		sink:      r.sink,
	}
}

func (r *RecordingLogger) WithComponent(component string) logging.Logger {
	return &RecordingLogger{component: component, fields: r.fields, sink: r.sink}
}

// Entries returns a copy of everything recorded so far
func (r *RecordingLogger) Entries() []LogEntry {
	r.sink.mutex.Lock()
	defer r.sink.mutex.Unlock()
	out := make([]LogEntry, len(r.sink.entries))
	copy(out, r.sink.entries)
	return out
}

// ByLevel returns recorded entries at the given level
func (r *RecordingLogger) ByLevel(level logging.LogLevel) []LogEntry {
	var out []LogEntry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry whose message contains substr
func (r *RecordingLogger) Find(substr string) (LogEntry, bool) {
	for _, e := range r.Entries() {
		if strings.Contains(e.Message, substr) {
			return e, true
		}
	}
	return LogEntry{}, false
}

// PanickingLogger panics on every call, standing in for a broken sink
type PanickingLogger struct{}

func (PanickingLogger) Debug(context.Context, string, ...interface{})       { panic("sink closed") }
func (PanickingLogger) Info(context.Context, string, ...interface{})        { panic("sink closed") }
func (PanickingLogger) Warn(context.Context, error, string, ...interface{}) { panic("sink closed") }
func (PanickingLogger) Error(context.Context, error, string, ...interface{}) {
	panic("sink closed")
}
func (p PanickingLogger) With(...interface{}) logging.Logger   { return p }
func (p PanickingLogger) WithComponent(string) logging.Logger { return p }

// ErrClosedSink is returned by FailingWriter
var ErrClosedSink = errors.New("write to closed sink")

// FailingWriter always fails to write
type FailingWriter struct{}

func (FailingWriter) Write([]byte) (int, error) { return 0, ErrClosedSink }

// CreateTempProject creates a project directory with a dist/ output folder
// holding the given files, each filled to its byte size.
func CreateTempProject(t *testing.T, files map[string]int) string {
	t.Helper()
	tempDir := t.TempDir()

	for name, size := range files {
		path := filepath.Join(tempDir, "dist", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	}
	return tempDir
}

// WriteAsset writes a zero-filled file of the given size into fs
func WriteAsset(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0644))
}
