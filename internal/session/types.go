package session

import "time"

// State represents the lifecycle state of the session.
type State string

const (
	StateUnloaded   State = "unloaded"
	StateLoaded     State = "loaded"
	StateGenerating State = "generating"
)

// LoadParams carries the caller's load request. Zero values defer to the
// device plan; GPULayers is accepted for API symmetry but forced to 0.
type LoadParams struct {
	// ContextSize caps the context below the plan when positive.
	ContextSize int
	// Threads is recorded for diagnostics; the plan's thread count is used.
	Threads int
	// GPULayers is ignored (CPU-only policy).
	GPULayers int
}

// TokenFunc receives one text fragment per generated token, synchronously
// and in order on the generation goroutine. The slice aliases an internal
// buffer and is only valid for the duration of the call. Returning an error
// aborts the generation and propagates the error to the Generate caller.
// Implementations must not call Load, Unload, or Generate.
type TokenFunc func(piece []byte) error

// Result is the outcome of one generation.
type Result struct {
	// Text is the accumulated response (every fragment already delivered
	// through the callback, joined).
	Text string
	// PromptTokens is the evaluated prompt length in tokens, after any
	// truncation.
	PromptTokens int
	// Tokens is the number of generated tokens.
	Tokens int
	// Stopped is true when the generation ended on a stop request rather
	// than completion (a successful, truncated outcome).
	Stopped bool
	// Duration covers tokenization through the last decode.
	Duration time.Duration
}
