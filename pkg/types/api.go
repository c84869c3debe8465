package types

// LoadRequest asks the server to load a model into the session.
type LoadRequest struct {
	// Registry id or absolute path of a GGUF model file.
	// example: tinyllama-q4
	Model string `json:"model"`
	// Requested context size in tokens. 0 means "whatever the device allows".
	// The effective size is capped by the device plan and the model's trained
	// context.
	// example: 2048
	ContextSize int `json:"context_size,omitempty" example:"2048"`
	// Requested thread count. 0 defers to the device plan.
	// example: 4
	Threads int `json:"threads,omitempty" example:"4"`
	// Requested GPU layer count. Ignored: the session is CPU-only and always
	// forces this to 0.
	// example: 0
	GPULayers int `json:"gpu_layers,omitempty" example:"0"`
}

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate. Clamped to the device plan's
	// per-request ceiling.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
}

// TokenEvent is one NDJSON stream line carrying a single token fragment.
type TokenEvent struct {
	// Token text fragment, in generation order.
	// example:  world
	Token string `json:"token"`
}

// DoneEvent is the final NDJSON stream line of a generation.
type DoneEvent struct {
	// Always true.
	Done bool `json:"done"`
	// Full accumulated text of the generation.
	// example: Hello world
	Content string `json:"content"`
	// Number of tokens generated.
	// example: 2
	Tokens int `json:"tokens"`
	// Number of prompt tokens evaluated (after truncation).
	// example: 9
	PromptTokens int `json:"prompt_tokens"`
	// True when the generation was cancelled before completing.
	// example: false
	Stopped bool `json:"stopped"`
	// Wall-clock duration of the generation in milliseconds.
	// example: 1260
	DurationMS int64 `json:"duration_ms"`
	// Set when the generation ended early on a decode failure; the streamed
	// prefix above is still valid.
	Error string `json:"error,omitempty"`
}

// StopResponse is returned by POST /v1/stop.
type StopResponse struct {
	// True when a generation was active at the time of the call.
	// example: true
	WasGenerating bool `json:"was_generating"`
}

// ModelsResponse wraps the list of models returned by GET /v1/models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	// Session lifecycle state (unloaded, loaded, generating).
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Path of the loaded model file, empty when unloaded.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	ModelPath string `json:"model_path,omitempty"`
	// Device capability snapshot from the most recent load.
	Device DeviceProfile `json:"device"`
	// Resource plan derived for the most recent load.
	Plan ResourcePlan `json:"plan"`
	// Loaded model details; zero value when unloaded.
	Info ModelInfo `json:"info"`
	// Monotonic id of the most recent generation.
	// example: 42
	GenerationID uint64 `json:"generation_id"`
	// Total generations completed since start, by outcome.
	// example: 41
	GenerationsOK uint64 `json:"generations_ok"`
	// example: 1
	GenerationsCancelled uint64 `json:"generations_cancelled"`
	// example: 0
	GenerationsFailed uint64 `json:"generations_failed"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix"`
}
