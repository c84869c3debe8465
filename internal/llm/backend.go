// Package llm defines the seam between the session and the inference
// backend that owns the tensor math and GGUF parsing. Concrete backends
// (cgo llama.cpp, purego yzma) register themselves by name; the session
// drives them exclusively through these interfaces so backend-specific
// failure codes never reach callers.
package llm

// Token is a vocabulary token id.
type Token int32

// ModelParams controls how a model file is mapped into the process.
type ModelParams struct {
	// GPULayers is the number of layers to offload. The session always
	// passes 0 (CPU-only policy).
	GPULayers int
	// UseMmap maps the file instead of reading it. The session always
	// passes true.
	UseMmap bool
	// UseMlock pins model pages in RAM. The session always passes false to
	// stay clear of the OOM killer.
	UseMlock bool
}

// ContextParams sizes an inference context.
type ContextParams struct {
	ContextSize  int
	Threads      int
	ThreadsBatch int
	BatchSize    int
	UBatchSize   int
	// Embeddings enables embedding extraction. The session always passes
	// false (inference only).
	Embeddings bool
}

// Backend creates models. Implementations are process-wide singletons
// obtained from the registry.
type Backend interface {
	// Name identifies the backend (registry key).
	Name() string
	// LoadModel maps a GGUF file. The returned Model owns the native handle
	// until Close.
	LoadModel(path string, p ModelParams) (Model, error)
}

// Model is a loaded model handle.
type Model interface {
	// Vocab resolves the model's vocabulary. The vocabulary is owned by the
	// model and becomes invalid when the model is closed.
	Vocab() (Vocab, error)
	// ParamCount reports the total parameter count.
	ParamCount() uint64
	// Description is the backend's human-readable model summary, e.g.
	// "llama 7B Q4_K_M".
	Description() string
	// TrainedContext is the context length the model was trained with.
	TrainedContext() int
	// NewContext creates an inference context sized by p.
	NewContext(p ContextParams) (Context, error)
	// NewSampler builds the token-selection chain described by cfg. Chain
	// construction cannot fail; misconfiguration surfaces at Sample time.
	NewSampler(cfg SamplerConfig) Sampler
	// Close releases the native model. Contexts and samplers created from
	// the model must be closed first.
	Close() error
}

// Vocab converts between text and token ids. The negative-size sentinel on
// Tokenize and TokenText carries the required capacity; callers perform
// exactly one resize-and-retry.
type Vocab interface {
	// Tokenize writes the token ids for text into dst and returns the count
	// written. A negative return means dst was too small and its magnitude
	// is the required capacity. addSpecial controls the special-token
	// prefix (BOS).
	Tokenize(text string, addSpecial bool, dst []Token) int
	// TokenText renders the token's text fragment into dst and returns the
	// byte count written, or a negative required capacity.
	TokenText(t Token, dst []byte) int
	// IsEOG reports whether t ends the generation (EOS/EOT).
	IsEOG(t Token) bool
	// Size is the vocabulary size.
	Size() int
}

// Context is an inference context holding the key/value memory.
type Context interface {
	// Decode evaluates the batch. Logits for entries flagged in the batch
	// are available to the sampler afterwards.
	Decode(b *Batch) error
	// ClearMemory drops all key/value cache state.
	ClearMemory()
	// Close releases the context.
	Close() error
}

// Sampler selects one token from the logits of the most recent decode.
type Sampler interface {
	// Sample applies the chain to the last decoded logits of c.
	Sample(c Context) Token
	// Reset clears accumulated sampling state between generations.
	Reset()
	// Close releases the sampler.
	Close() error
}
