//go:build llama

// Package llamacpp is the in-process cgo backend. It binds llama.h directly
// and is enabled with `-tags=llama`; default builds get the no-CGO stub.
package llamacpp

/*
#include "llama.h"
*/
import "C"

import (
	"fmt"
	"sync"

	"inferd/internal/llm"
)

// Name is the registry key for this backend.
const Name = "llamacpp"

var initOnce sync.Once

func init() {
	llm.Register(Name, func(llm.Options) (llm.Backend, error) {
		initOnce.Do(cBackendInit)
		return backend{}, nil
	})
}

type backend struct{}

func (backend) Name() string { return Name }

func (backend) LoadModel(path string, p llm.ModelParams) (llm.Model, error) {
	h := cModelLoad(path, int32(p.GPULayers), p.UseMmap, p.UseMlock)
	if h == nil {
		return nil, fmt.Errorf("llamacpp: cannot load model %q", path)
	}
	return &model{handle: h}, nil
}

// model wraps a loaded llama_model. The handle is read-only after load; the
// mutex only guards Close against double free.
type model struct {
	mu     sync.Mutex
	handle *C.struct_llama_model
	closed bool
}

func (m *model) Vocab() (llm.Vocab, error) {
	v := cModelGetVocab(m.handle)
	if v == nil {
		return nil, fmt.Errorf("llamacpp: model has no vocabulary")
	}
	return &vocab{handle: v}, nil
}

func (m *model) ParamCount() uint64  { return cModelNParams(m.handle) }
func (m *model) Description() string { return cModelDesc(m.handle) }
func (m *model) TrainedContext() int { return cModelNCtxTrain(m.handle) }

func (m *model) NewContext(p llm.ContextParams) (llm.Context, error) {
	h := cContextNew(m.handle,
		uint32(p.ContextSize), uint32(p.BatchSize), uint32(p.UBatchSize),
		int32(p.Threads), int32(p.ThreadsBatch), p.Embeddings)
	if h == nil {
		return nil, fmt.Errorf("llamacpp: cannot create context (n_ctx=%d)", p.ContextSize)
	}
	// The native batch is allocated once here and rewritten in place on
	// every Decode; nothing on the decode path allocates.
	return &context{handle: h, batch: cBatchInit(int32(p.BatchSize))}, nil
}

func (m *model) NewSampler(cfg llm.SamplerConfig) llm.Sampler {
	return &sampler{handle: cSamplerChainNew(int32(cfg.TopK), cfg.TopP, cfg.MinKeep, cfg.Temperature, cfg.Seed)}
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	cModelFree(m.handle)
	m.handle = nil
	return nil
}

// vocab is owned by its model and shares its lifetime.
type vocab struct {
	handle *C.struct_llama_vocab
}

func (v *vocab) Tokenize(text string, addSpecial bool, dst []llm.Token) int {
	return cTokenize(v.handle, text, dst, addSpecial, true)
}

func (v *vocab) TokenText(t llm.Token, dst []byte) int {
	return cTokenToPiece(v.handle, int32(t), dst)
}

func (v *vocab) IsEOG(t llm.Token) bool { return cVocabIsEOG(v.handle, int32(t)) }
func (v *vocab) Size() int              { return cVocabNTokens(v.handle) }

type context struct {
	mu     sync.Mutex
	handle *C.struct_llama_context
	batch  C.llama_batch
	closed bool
}

func (c *context) Decode(b *llm.Batch) error {
	cBatchSet(&c.batch, b.Tokens(), b.Positions(), b.Logits())
	if rc := cDecode(c.handle, c.batch); rc != 0 {
		return fmt.Errorf("llamacpp: decode failed (status %d)", rc)
	}
	return nil
}

func (c *context) ClearMemory() { cMemoryClear(c.handle) }

func (c *context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	cBatchFree(c.batch)
	cContextFree(c.handle)
	c.handle = nil
	return nil
}

type sampler struct {
	handle *C.struct_llama_sampler
}

func (s *sampler) Sample(c llm.Context) llm.Token {
	return llm.Token(cSamplerSample(s.handle, c.(*context).handle))
}

func (s *sampler) Reset() { cSamplerReset(s.handle) }

func (s *sampler) Close() error {
	if s.handle != nil {
		cSamplerFree(s.handle)
		s.handle = nil
	}
	return nil
}
