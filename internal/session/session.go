package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"inferd/internal/llm"
	"inferd/internal/policy"
	"inferd/pkg/types"
)

// defaultPlanner adapts the policy table to the SessionConfig hook.
func defaultPlanner(p types.DeviceProfile) types.ResourcePlan { return policy.PlanFor(p) }

// Session owns the loaded model and everything derived from it. The loaded
// resources are all present or all absent, never a caller-visible partial
// state; mu guards the transitions and readers, while a running generation
// works on a snapshot taken under mu at entry.
type Session struct {
	mu sync.RWMutex

	// Single-flight gate and cancellation epoch. genID identifies the active
	// or most recent generation, stopID the id that should halt (0 = none).
	// Both persist across loads and unloads.
	generating atomic.Bool
	genID      atomic.Uint64
	stopID     atomic.Uint64

	// genDone is closed when the active generation exits. Set under mu at
	// entry; drainLocked waits on it while holding mu, which cannot deadlock
	// because the generation exit path takes no locks.
	genDone chan struct{}

	// Loaded resources, all nil when unloaded.
	model   llm.Model
	vocab   llm.Vocab
	lctx    llm.Context
	sampler llm.Sampler
	batch   *llm.Batch

	profile   types.DeviceProfile
	plan      types.ResourcePlan
	info      types.ModelInfo
	modelPath string

	// pieceBuf is the detokenize scratch, owned by the active generation.
	pieceBuf []byte

	// Construction-time configuration (see SessionConfig).
	backend      llm.Backend
	profiler     func() types.DeviceProfile
	planner      func(types.DeviceProfile) types.ResourcePlan
	publisher    EventPublisher
	sampling     llm.SamplerConfig
	maxParams    uint64
	quantMarkers []string
	startTime    time.Time

	genOK        atomic.Uint64
	genCancelled atomic.Uint64
	genFailed    atomic.Uint64
}

// Load tears down any prior session, then loads the model at path behind the
// safety gates: parameter-count cap and quantization whitelist. Regardless of
// the request, GPU offload is forced off and mmap is mandatory with mlock
// disallowed. The effective context is min(requested, plan, trained),
// surfaced in the load_done event. Any failure releases every resource
// acquired so far and leaves the session fully unloaded.
func (s *Session) Load(path string, p LoadParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLocked()
	s.teardownLocked()

	profile := s.profiler()
	plan := s.planner(profile)
	s.publisher.Publish(Event{Name: "load_start", Model: path, Fields: map[string]any{
		"memory_mb":            profile.TotalMemoryMB,
		"cores":                profile.LogicalCores,
		"ctx_requested":        p.ContextSize,
		"threads_requested":    p.Threads,
		"gpu_layers_requested": p.GPULayers,
	}})

	model, err := s.backend.LoadModel(path, llm.ModelParams{GPULayers: 0, UseMmap: true, UseMlock: false})
	if err != nil {
		return s.failLoad(path, ErrModelLoad(path, err))
	}
	vocab, err := model.Vocab()
	if err != nil {
		model.Close()
		return s.failLoad(path, ErrVocab(err))
	}
	trained := model.TrainedContext()
	ctxSize := plan.ContextSize
	if p.ContextSize > 0 && p.ContextSize < ctxSize {
		ctxSize = p.ContextSize
	}
	if trained > 0 && trained < ctxSize {
		ctxSize = trained
	}
	lctx, err := model.NewContext(llm.ContextParams{
		ContextSize:  ctxSize,
		Threads:      plan.ThreadCount,
		ThreadsBatch: plan.ThreadCount,
		BatchSize:    plan.BatchSize,
		UBatchSize:   plan.BatchSize,
	})
	if err != nil {
		model.Close()
		return s.failLoad(path, ErrContextCreate(ctxSize, err))
	}
	params := model.ParamCount()
	if params > s.maxParams {
		lctx.Close()
		model.Close()
		return s.failLoad(path, ErrModelTooLarge(params, s.maxParams))
	}
	desc := model.Description()
	if !quantAccepted(desc, s.quantMarkers) {
		lctx.Close()
		model.Close()
		return s.failLoad(path, ErrUnsupportedQuantization(desc))
	}

	s.model = model
	s.vocab = vocab
	s.lctx = lctx
	s.batch = llm.NewBatch(plan.BatchSize)
	s.sampler = model.NewSampler(s.sampling)
	s.profile = profile
	s.plan = plan
	s.modelPath = path
	s.info = types.ModelInfo{
		Description:    desc,
		ParamCount:     params,
		VocabSize:      vocab.Size(),
		TrainedContext: trained,
		ActiveContext:  ctxSize,
		BatchSize:      plan.BatchSize,
		ThreadCount:    plan.ThreadCount,
	}
	s.publisher.Publish(Event{Name: "load_done", Model: path, Fields: map[string]any{
		"ctx":           ctxSize,
		"ctx_requested": p.ContextSize,
		"ctx_plan":      plan.ContextSize,
		"ctx_trained":   trained,
		"threads":       plan.ThreadCount,
		"batch":         plan.BatchSize,
		"max_tokens":    plan.MaxGeneratedTokens,
		"params":        params,
		"desc":          desc,
	}})
	return nil
}

func (s *Session) failLoad(path string, err error) error {
	s.publisher.Publish(Event{Name: "load_failed", Model: path, Fields: map[string]any{
		"error": err.Error(),
	}})
	return err
}

// quantAccepted reports whether the lower-cased description carries one of
// the accepted quantization markers.
func quantAccepted(desc string, markers []string) bool {
	lower := strings.ToLower(desc)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
