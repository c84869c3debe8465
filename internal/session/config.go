package session

import (
	"time"

	"inferd/internal/device"
	"inferd/internal/llm"
	"inferd/pkg/types"
)

// Defaults applied when corresponding SessionConfig fields are unset.
const (
	// defaultMaxParams is the parameter-count safety cap (7e9). Larger
	// models are rejected at load time.
	defaultMaxParams = uint64(7_000_000_000)
	// defaultPieceBufSize is the initial detokenize scratch size; the
	// sentinel-and-retry path grows it when a fragment does not fit.
	defaultPieceBufSize = 128
)

// defaultQuantMarkers are the accepted quantization markers looked up in the
// lower-cased model description.
var defaultQuantMarkers = []string{"q4", "q5", "quantized"}

// SessionConfig encapsulates all tunables for Session construction.
type SessionConfig struct {
	// Backend performs the tensor math and GGUF parsing. Required.
	Backend llm.Backend
	// Profiler reads the device capability; defaults to device.Detect.
	Profiler func() types.DeviceProfile
	// Planner maps a profile to a resource plan; defaults to the package
	// policy table.
	Planner func(types.DeviceProfile) types.ResourcePlan
	// Publisher receives lifecycle events; defaults to a no-op.
	Publisher EventPublisher
	// Sampling overrides the token-selection chain; zero means the default
	// chain (top-k 20, top-p 0.85, temperature 0.6).
	Sampling llm.SamplerConfig
	// MaxParams overrides the parameter-count cap; zero means the default.
	MaxParams uint64
	// QuantMarkers overrides the accepted quantization markers; nil means
	// the defaults.
	QuantMarkers []string
}

// NewWithConfig constructs a Session from SessionConfig. The backend must be
// set; everything else has working defaults.
func NewWithConfig(cfg SessionConfig) *Session {
	s := &Session{
		backend:      cfg.Backend,
		profiler:     cfg.Profiler,
		planner:      cfg.Planner,
		publisher:    cfg.Publisher,
		sampling:     cfg.Sampling,
		maxParams:    cfg.MaxParams,
		quantMarkers: cfg.QuantMarkers,
		pieceBuf:     make([]byte, defaultPieceBufSize),
	}
	if s.profiler == nil {
		s.profiler = device.Detect
	}
	if s.planner == nil {
		s.planner = defaultPlanner
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if (s.sampling == llm.SamplerConfig{}) {
		s.sampling = llm.DefaultSamplerConfig()
	}
	if s.maxParams == 0 {
		s.maxParams = defaultMaxParams
	}
	if s.quantMarkers == nil {
		s.quantMarkers = defaultQuantMarkers
	}
	s.startTime = time.Now()
	return s
}

// New constructs a Session with defaults for everything but the backend.
func New(backend llm.Backend) *Session {
	return NewWithConfig(SessionConfig{Backend: backend})
}
