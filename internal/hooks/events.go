package hooks

import "time"

// EventKind identifies a lifecycle notification.
type EventKind int

const (
	EventCompileStarted EventKind = iota
	EventCompileFinished
	EventCompileFailed
	EventFileInvalidated
)

// String returns the hook name for the event kind
func (k EventKind) String() string {
	switch k {
	case EventCompileStarted:
		return "compileStart"
	case EventCompileFinished:
		return "compileFinish"
	case EventCompileFailed:
		return "compileFailed"
	case EventFileInvalidated:
		return "fileInvalidated"
	default:
		return "unknown"
	}
}

// Event is implemented by every hook payload.
type Event interface {
	Kind() EventKind
}

// CompileStarted is fired before the build command runs.
type CompileStarted struct {
	Time time.Time
}

// CompileFinished is fired once the output directory has been collected.
// EndTime before StartTime is a host defect; observers report it as-is.
type CompileFinished struct {
	StartTime time.Time
	EndTime   time.Time
	Assets    *AssetTable
}

// Duration is EndTime minus StartTime. It may be negative.
func (e CompileFinished) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// OutputFileCount is the number of entries in the asset table.
func (e CompileFinished) OutputFileCount() int {
	return e.Assets.Len()
}

// CompileFailed carries the host's failure message.
type CompileFailed struct {
	Message string
	Err     error
}

// FileInvalidated reports a source change that triggered a rebuild.
type FileInvalidated struct {
	FileName   string
	ChangeTime time.Time
}

func (CompileStarted) Kind() EventKind  { return EventCompileStarted }
func (CompileFinished) Kind() EventKind { return EventCompileFinished }
func (CompileFailed) Kind() EventKind   { return EventCompileFailed }
func (FileInvalidated) Kind() EventKind { return EventFileInvalidated }
