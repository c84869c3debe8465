// Package session owns the single model session for the process: the loaded
// model, its vocabulary, inference context, sampler chain, and batch arena.
// It enforces the load-time safety gates, serializes load/unload against
// generation, and drives the streaming decode loop with cooperative
// cancellation. It is structured into small files by concern:
//
//   - session.go: core Session type, constructor, load sequence, teardown.
//   - config.go: SessionConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, LoadParams, Result, TokenFunc.
//   - errors.go: error types and Is* helpers, one per failure class.
//   - generate.go: generation entry gate, epoch bookkeeping, decode loop, Stop.
//   - unload.go: Unload and the drain that preempts an in-flight generation.
//   - status.go: read-only queries (IsLoaded, Info, Status, ...).
//   - events.go: Event and EventPublisher; eventpub_memory.go: test publisher.
//
// Concurrency: at most one generation is in flight, enforced by an atomic
// test-and-set. Cancellation travels through a generation_id/stop_id counter
// pair checked once per loop iteration; Load and Unload set the stop id and
// wait for the active generation to exit before touching resources. External
// packages should use public methods only (New/NewWithConfig, Load, Unload,
// Generate, Stop, Status).
package session
