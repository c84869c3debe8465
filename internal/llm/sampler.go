package llm

// DefaultSeed asks the backend for its default RNG seed (llama.cpp's
// LLAMA_DEFAULT_SEED).
const DefaultSeed uint32 = 0xFFFFFFFF

// SamplerConfig describes the fixed token-selection chain, applied in order:
// top-k filter, nucleus (top-p) filter, temperature scaling, then a seeded
// categorical draw. The chain is rebuilt at load time and Reset at the start
// of every generation.
type SamplerConfig struct {
	TopK        int
	TopP        float32
	MinKeep     int
	Temperature float32
	Seed        uint32
}

// DefaultSamplerConfig returns the chain used by the session: a tight top-k,
// a conservative nucleus, and a low temperature biased toward high-confidence
// tokens.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		TopK:        20,
		TopP:        0.85,
		MinKeep:     1,
		Temperature: 0.6,
		Seed:        DefaultSeed,
	}
}
