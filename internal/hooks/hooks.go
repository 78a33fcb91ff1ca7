// Package hooks defines the lifecycle hook surface a build pipeline exposes to
// observers: tap-style subscriptions keyed by observer name, the event
// payloads delivered to them, and the ordered asset table handed over when a
// compilation finishes.
//
// Sync hooks fire their taps in registration order on the caller's goroutine.
// Async hooks are awaited tap by tap; the first failing tap aborts the call.
// Tapping twice with the same name replaces the earlier callback, so attaching
// an observer is idempotent per name.
package hooks

import (
	"context"
	"fmt"
	"sync"
)

// Pipeline is the minimal hook surface observers attach to.
type Pipeline interface {
	CompileStart() *SyncHook[CompileStarted]
	CompileFinish() *SyncHook[CompileFinished]
	CompileFailed() *SyncHook[CompileFailed]
	FileInvalidated() *SyncHook[FileInvalidated]
	OptimizeAssets() *AsyncHook[*AssetTable]
}

type syncTap[T any] struct {
	name string
	fn   func(T)
}

// SyncHook is a named, ordered list of synchronous callbacks.
type SyncHook[T any] struct {
	taps  []syncTap[T]
	mutex sync.RWMutex
}

// Tap registers fn under name. A second Tap with the same name replaces the
// first in place.
func (h *SyncHook[T]) Tap(name string, fn func(T)) {
	if fn == nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i := range h.taps {
		if h.taps[i].name == name {
			h.taps[i].fn = fn
			return
		}
	}
	h.taps = append(h.taps, syncTap[T]{name: name, fn: fn})
}

// Untap removes the callback registered under name.
func (h *SyncHook[T]) Untap(name string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i := range h.taps {
		if h.taps[i].name == name {
			h.taps = append(h.taps[:i], h.taps[i+1:]...)
			return true
		}
	}
	return false
}

// Call invokes every tap in registration order.
func (h *SyncHook[T]) Call(v T) {
	h.mutex.RLock()
	taps := make([]syncTap[T], len(h.taps))
	copy(taps, h.taps)
	h.mutex.RUnlock()

	for _, t := range taps {
		t.fn(v)
	}
}

// Names returns the registered tap names in call order.
func (h *SyncHook[T]) Names() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	names := make([]string, len(h.taps))
	for i, t := range h.taps {
		names[i] = t.name
	}
	return names
}

type asyncTap[T any] struct {
	name string
	fn   func(context.Context, T) error
}

// AsyncHook is a named, ordered list of callbacks that may block. The caller
// awaits each one before moving on.
type AsyncHook[T any] struct {
	taps  []asyncTap[T]
	mutex sync.RWMutex
}

// TapPromise registers fn under name, replacing any callback with that name.
func (h *AsyncHook[T]) TapPromise(name string, fn func(context.Context, T) error) {
	if fn == nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i := range h.taps {
		if h.taps[i].name == name {
			h.taps[i].fn = fn
			return
		}
	}
	h.taps = append(h.taps, asyncTap[T]{name: name, fn: fn})
}

// Promise runs the taps in order and returns the first failure, wrapped with
// the name of the tap that produced it. A cancelled context stops the chain.
func (h *AsyncHook[T]) Promise(ctx context.Context, v T) error {
	h.mutex.RLock()
	taps := make([]asyncTap[T], len(h.taps))
	copy(taps, h.taps)
	h.mutex.RUnlock()

	for _, t := range taps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.fn(ctx, v); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

// Names returns the registered tap names in call order.
func (h *AsyncHook[T]) Names() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	names := make([]string, len(h.taps))
	for i, t := range h.taps {
		names[i] = t.name
	}
	return names
}

// Hooks is the default Pipeline implementation. Hosts embed it and fire the
// hooks as their build progresses.
type Hooks struct {
	compileStart    SyncHook[CompileStarted]
	compileFinish   SyncHook[CompileFinished]
	compileFailed   SyncHook[CompileFailed]
	fileInvalidated SyncHook[FileInvalidated]
	optimizeAssets  AsyncHook[*AssetTable]
}

// NewHooks returns an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) CompileStart() *SyncHook[CompileStarted]     { return &h.compileStart }
func (h *Hooks) CompileFinish() *SyncHook[CompileFinished]   { return &h.compileFinish }
func (h *Hooks) CompileFailed() *SyncHook[CompileFailed]     { return &h.compileFailed }
func (h *Hooks) FileInvalidated() *SyncHook[FileInvalidated] { return &h.fileInvalidated }
func (h *Hooks) OptimizeAssets() *AsyncHook[*AssetTable]     { return &h.optimizeAssets }

var _ Pipeline = (*Hooks)(nil)
