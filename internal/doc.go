// Package internal contains the implementation packages for buildlens.
//
// # Package Organization
//
//   - hooks: lifecycle hook registry (compileStart, compileFinish,
//     compileFailed, fileInvalidated, optimizeAssets) and the ordered asset table
//   - build: build host that runs the build command, collects output and
//     fires the hooks; build metrics
//   - reporter: compilation lifecycle logging
//   - audit: asset size audit, table rendering and summary encoding
//   - stream: WebSocket event streaming
//   - watcher: file system monitoring with debouncing
//   - config: Viper-backed configuration with validation
//   - logging: slog-based structured logging and failure-proof sinks
//   - errors: failure taxonomy and build output parsing
//   - version: build information
//   - testutils: shared test fixtures
//
// # Inter-Package Communication
//
// Observers never call the build host. They tap hooks on a hooks.Pipeline
// and receive immutable event values; the host never sees an error or a
// panic from an observer callback.
package internal
