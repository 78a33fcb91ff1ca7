package logging

import (
	"fmt"
	"io"
	"sync"
)

// SafeWriter forwards to an underlying writer and swallows its failures.
// Write always reports success so callers never branch on a broken sink.
type SafeWriter struct {
	w       io.Writer
	onError func(error)
	once    sync.Once
	mutex   sync.Mutex
}

// NewSafeWriter wraps w. onError, if set, receives the first write failure.
func NewSafeWriter(w io.Writer, onError func(error)) *SafeWriter {
	if sw, ok := w.(*SafeWriter); ok && onError == nil {
		return sw
	}
	return &SafeWriter{w: w, onError: onError}
}

// Write implements io.Writer.
func (s *SafeWriter) Write(p []byte) (n int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.report(fmt.Errorf("writer panicked: %v", r))
			n, err = len(p), nil
		}
	}()

	if _, werr := s.w.Write(p); werr != nil {
		s.report(werr)
	}
	return len(p), nil
}

func (s *SafeWriter) report(err error) {
	if s.onError == nil {
		return
	}
	s.once.Do(func() {
		defer func() { _ = recover() }()
		s.onError(err)
	})
}

// Guard runs fn and discards any panic it raises. Observer callbacks run
// under Guard so a failing diagnostic can never take the host build down.
func Guard(fn func()) (recovered bool) {
	defer func() {
		if r := recover(); r != nil {
			recovered = true
		}
	}()
	fn()
	return false
}
