// Package yzma binds llama.cpp through prebuilt shared libraries using
// purego FFI, so inference works without cgo or a C toolchain on the build
// host. The libraries come from `testctl install llama` (or any llama.cpp
// build) and are bound at most once per process; a failed bind is sticky
// until restart.
package yzma

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"

	"inferd/internal/llm"
)

// Name is the registry key for this backend.
const Name = "yzma"

var (
	loadOnce sync.Once
	loadErr  error
)

func init() {
	llm.Register(Name, func(opts llm.Options) (llm.Backend, error) {
		if err := ensureLoaded(opts.LibPath); err != nil {
			return nil, llm.ErrUnavailable(err.Error())
		}
		return &backend{}, nil
	})
}

// ensureLoaded binds the shared libraries exactly once per process. There is
// no unload path in the FFI layer, so the first LibPath wins.
func ensureLoaded(libPath string) error {
	loadOnce.Do(func() {
		dir := discoverLibDir(libPath)
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if err := llama.Load(dir); err != nil {
			loadErr = fmt.Errorf("load llama libraries from %s: %w", dir, err)
			return
		}
		llama.Init()
	})
	return loadErr
}

type backend struct{}

func (backend) Name() string { return Name }

// LoadModel maps a GGUF file. The library defaults already mmap the file and
// leave mlock off, so only the GPU layer count needs setting.
func (backend) LoadModel(path string, p llm.ModelParams) (llm.Model, error) {
	mp := llama.ModelDefaultParams()
	mp.NGpuLayers = int32(p.GPULayers)
	h, err := llama.ModelLoadFromFile(path, mp)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", filepath.Base(path), err)
	}
	return &model{handle: h}, nil
}

type model struct {
	mu     sync.Mutex
	handle llama.Model
	closed bool
}

func (m *model) Vocab() (llm.Vocab, error) {
	return &vocab{handle: llama.ModelGetVocab(m.handle)}, nil
}

// ParamCount reads the parameter count from GGUF metadata; models without
// the key report 0 (unknown).
func (m *model) ParamCount() uint64 {
	s, _ := llama.ModelMetaValStr(m.handle, "general.parameter_count")
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (m *model) Description() string {
	return llama.ModelDesc(m.handle)
}

// TrainedContext reads the architecture's context_length from GGUF metadata;
// 0 means unknown.
func (m *model) TrainedContext() int {
	arch, _ := llama.ModelMetaValStr(m.handle, "general.architecture")
	if arch == "" {
		return 0
	}
	s, _ := llama.ModelMetaValStr(m.handle, arch+".context_length")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (m *model) NewContext(p llm.ContextParams) (llm.Context, error) {
	h, err := newNativeContext(m.handle, p)
	if err != nil {
		return nil, fmt.Errorf("create context (n_ctx=%d): %w", p.ContextSize, err)
	}
	n := p.BatchSize
	if n < 1 {
		n = 1
	}
	return &context{
		model:   m.handle,
		p:       p,
		handle:  h,
		live:    true,
		scratch: make([]llama.Token, 0, n),
	}, nil
}

func (m *model) NewSampler(cfg llm.SamplerConfig) llm.Sampler {
	s := &sampler{model: m.handle, cfg: cfg}
	s.rebuild()
	return s
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	llama.ModelFree(m.handle)
	return nil
}

// newNativeContext sizes and creates a native context. Thread and micro-batch
// counts ride the library defaults; the FFI surface does not expose them.
func newNativeContext(m llama.Model, p llm.ContextParams) (llama.Context, error) {
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(p.ContextSize)
	cp.NBatch = uint32(p.BatchSize)
	cp.Embeddings = 0
	if p.Embeddings {
		cp.Embeddings = 1
	}
	return llama.InitFromModel(m, cp)
}

type vocab struct {
	handle llama.Vocab
}

func (v *vocab) Tokenize(text string, addSpecial bool, dst []llm.Token) int {
	toks := llama.Tokenize(v.handle, text, addSpecial, true)
	if len(toks) > len(dst) {
		return -len(toks)
	}
	for i, t := range toks {
		dst[i] = llm.Token(t)
	}
	return len(toks)
}

func (v *vocab) TokenText(t llm.Token, dst []byte) int {
	return int(llama.TokenToPiece(v.handle, llama.Token(t), dst, 0, true))
}

func (v *vocab) IsEOG(t llm.Token) bool {
	return llama.VocabIsEOG(v.handle, llama.Token(t))
}

// Size reports 0; the FFI surface does not expose the tokenizer size and
// callers treat 0 as unknown.
func (v *vocab) Size() int { return 0 }

// context wraps a native context. ClearMemory frees the native handle and
// the next Decode recreates it, which drops all key/value state without ever
// holding two contexts alive at once.
type context struct {
	mu      sync.Mutex
	model   llama.Model
	p       llm.ContextParams
	handle  llama.Context
	live    bool
	dirty   bool
	scratch []llama.Token
	closed  bool
}

// Decode evaluates the batch tokens in order. BatchGetOne infers positions
// from the memory state and computes logits for the final entry, so the
// explicit positions and logit flags in b are not consulted here.
func (c *context) Decode(b *llm.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("context closed")
	}
	toks := b.Tokens()
	if len(toks) == 0 {
		return nil
	}
	if len(toks) > cap(c.scratch) {
		return fmt.Errorf("batch of %d exceeds context batch %d", len(toks), cap(c.scratch))
	}
	if err := c.ensureLive(); err != nil {
		return err
	}
	c.scratch = c.scratch[:len(toks)]
	for i, t := range toks {
		c.scratch[i] = llama.Token(t)
	}
	if _, err := llama.Decode(c.handle, llama.BatchGetOne(c.scratch)); err != nil {
		return fmt.Errorf("decode %d tokens: %w", len(toks), err)
	}
	c.dirty = true
	return nil
}

func (c *context) ensureLive() error {
	if c.live {
		return nil
	}
	h, err := newNativeContext(c.model, c.p)
	if err != nil {
		return fmt.Errorf("recreate context: %w", err)
	}
	c.handle = h
	c.live = true
	return nil
}

func (c *context) ClearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.live || !c.dirty {
		return
	}
	llama.Free(c.handle)
	c.live = false
	c.dirty = false
}

func (c *context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.live {
		llama.Free(c.handle)
		c.live = false
	}
	return nil
}

// sampler holds the chain settings and rebuilds the native chain on Reset;
// the FFI surface has no in-place reset. The distribution stage keeps the
// library's default seed.
type sampler struct {
	model  llama.Model
	cfg    llm.SamplerConfig
	handle llama.Sampler
	built  bool
}

func (s *sampler) rebuild() {
	if s.built {
		llama.SamplerFree(s.handle)
	}
	sp := llama.DefaultSamplerParams()
	sp.TopK = int32(s.cfg.TopK)
	sp.TopP = s.cfg.TopP
	sp.Temp = s.cfg.Temperature
	s.handle = llama.NewSampler(s.model, llama.DefaultSamplers, sp)
	s.built = true
}

func (s *sampler) Sample(c llm.Context) llm.Token {
	lc := c.(*context)
	return llm.Token(llama.SamplerSample(s.handle, lc.handle, -1))
}

func (s *sampler) Reset() { s.rebuild() }

func (s *sampler) Close() error {
	if s.built {
		llama.SamplerFree(s.handle)
		s.built = false
	}
	return nil
}
