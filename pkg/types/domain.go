package types

// DeviceProfile captures the host capability snapshot a load decision is
// based on. Derived once per load; never persisted.
type DeviceProfile struct {
	// Total physical memory in MB.
	// example: 8192
	TotalMemoryMB int `json:"total_memory_mb" example:"8192"`
	// Logical CPU core count.
	// example: 8
	LogicalCores int `json:"logical_cores" example:"8"`
}

// ResourcePlan is the resource budget derived from a DeviceProfile. Immutable
// once computed; owned by the session for the lifetime of one load.
type ResourcePlan struct {
	// Context window size in tokens.
	// example: 2048
	ContextSize int `json:"context_size" example:"2048"`
	// Scheduling batch size in tokens.
	// example: 256
	BatchSize int `json:"batch_size" example:"256"`
	// Worker thread count for prefill and decode.
	// example: 8
	ThreadCount int `json:"thread_count" example:"8"`
	// Upper bound on tokens generated per request.
	// example: 512
	MaxGeneratedTokens int `json:"max_generated_tokens" example:"512"`
}

// ModelInfo describes the currently loaded model. Zero value when nothing is
// loaded.
type ModelInfo struct {
	// Human-readable model description from the backend.
	// example: llama 7B Q4_K_M
	Description string `json:"description" example:"llama 7B Q4_K_M"`
	// Total parameter count.
	// example: 6738415616
	ParamCount uint64 `json:"param_count" example:"6738415616"`
	// Vocabulary size.
	// example: 32000
	VocabSize int `json:"vocab_size" example:"32000"`
	// Context length the model was trained with.
	// example: 4096
	TrainedContext int `json:"trained_context" example:"4096"`
	// Context length the active inference context was created with.
	// example: 2048
	ActiveContext int `json:"active_context" example:"2048"`
	// Batch size of the active inference context.
	// example: 256
	BatchSize int `json:"batch_size" example:"256"`
	// Thread count of the active inference context.
	// example: 8
	ThreadCount int `json:"thread_count" example:"8"`
}

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}
