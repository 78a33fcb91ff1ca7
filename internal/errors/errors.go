// Package errors classifies the failures the build observers deal with.
//
// Host build failures come from the pipeline and are always surfaced.
// Diagnostic failures happen while computing a report and degrade it.
// Output failures come from the log sink itself and are dropped.
// None of them is ever returned into the host from an observer callback.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
)

// Kind is the failure class of a ReportError
type Kind int

const (
	KindHostBuild Kind = iota
	KindDiagnostic
	KindOutput
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindHostBuild:
		return "host_build"
	case KindDiagnostic:
		return "diagnostic"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// ReportError is a classified failure
type ReportError struct {
	Kind    Kind
	Op      string
	Subject string
	Err     error
}

// Error implements the error interface
func (e *ReportError) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Subject, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, e.Subject)
	}
}

// Unwrap returns the underlying cause
func (e *ReportError) Unwrap() error {
	return e.Err
}

// HostBuild wraps a failure reported by the build pipeline
func HostBuild(op string, err error) *ReportError {
	return &ReportError{Kind: KindHostBuild, Op: op, Err: err}
}

// Diagnostic wraps a failure computing part of a report
func Diagnostic(op, subject string, err error) *ReportError {
	return &ReportError{Kind: KindDiagnostic, Op: op, Subject: subject, Err: err}
}

// Output wraps a failure of the output sink
func Output(err error) *ReportError {
	return &ReportError{Kind: KindOutput, Op: "write", Err: err}
}

// IsKind reports whether any error in err's chain is a ReportError of kind
func IsKind(err error, kind Kind) bool {
	var re *ReportError
	if stderrors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// Recovered converts a recovered panic value into an error
func Recovered(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// ErrorCollector collects classified errors in arrival order
type ErrorCollector struct {
	errors []*ReportError
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]*ReportError, 0),
	}
}

// Add records err
func (ec *ErrorCollector) Add(err *ReportError) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Errors returns a copy of all collected errors
func (ec *ErrorCollector) Errors() []*ReportError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]*ReportError, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// ByKind returns the collected errors of the given kind
func (ec *ErrorCollector) ByKind(kind Kind) []*ReportError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	var result []*ReportError
	for _, err := range ec.errors {
		if err.Kind == kind {
			result = append(result, err)
		}
	}
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}

// Join combines the collected errors into one, or nil
func (ec *ErrorCollector) Join() error {
	errs := ec.Errors()
	if len(errs) == 0 {
		return nil
	}
	plain := make([]error, len(errs))
	for i, e := range errs {
		plain[i] = e
	}
	return stderrors.Join(plain...)
}
