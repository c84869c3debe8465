//go:build llama

package llamacpp

// Direct cgo bindings to llama.h. Headers come from a llama.cpp checkout at
// the repository root; a symlink to ~/src/llama.cpp (the `testctl install
// llama` checkout) works. libllama.so is linked from ./lib with $ORIGIN
// rpaths so the runtime loader finds it next to the built binary without
// environment variables.

/*
#cgo CFLAGS: -I${SRCDIR}/../../../llama.cpp/include -I${SRCDIR}/../../../llama.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../../lib -lllama -Wl,-rpath,'$ORIGIN' -Wl,-rpath,'$ORIGIN/../lib'
#include <stdlib.h>
#include "llama.h"
*/
import "C"

import (
	"runtime"
	"unsafe"

	"inferd/internal/llm"
)

func cBackendInit() { C.llama_backend_init() }

func cModelLoad(path string, gpuLayers int32, useMmap, useMlock bool) *C.struct_llama_model {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	p := C.llama_model_default_params()
	p.n_gpu_layers = C.int32_t(gpuLayers)
	p.use_mmap = C.bool(useMmap)
	p.use_mlock = C.bool(useMlock)
	return C.llama_model_load_from_file(cpath, p)
}

func cModelFree(m *C.struct_llama_model) { C.llama_model_free(m) }

func cModelNParams(m *C.struct_llama_model) uint64 {
	return uint64(C.llama_model_n_params(m))
}

func cModelNCtxTrain(m *C.struct_llama_model) int {
	return int(C.llama_model_n_ctx_train(m))
}

func cModelDesc(m *C.struct_llama_model) string {
	var buf [256]C.char
	n := C.llama_model_desc(m, &buf[0], C.size_t(len(buf)))
	if n <= 0 {
		return ""
	}
	return C.GoStringN(&buf[0], C.int(n))
}

func cModelGetVocab(m *C.struct_llama_model) *C.struct_llama_vocab {
	return (*C.struct_llama_vocab)(unsafe.Pointer(C.llama_model_get_vocab(m)))
}

func cContextNew(m *C.struct_llama_model, nCtx, nBatch, nUbatch uint32, nThreads, nThreadsBatch int32, embeddings bool) *C.struct_llama_context {
	p := C.llama_context_default_params()
	p.n_ctx = C.uint32_t(nCtx)
	p.n_batch = C.uint32_t(nBatch)
	p.n_ubatch = C.uint32_t(nUbatch)
	p.n_threads = C.int32_t(nThreads)
	p.n_threads_batch = C.int32_t(nThreadsBatch)
	p.embeddings = C.bool(embeddings)
	return C.llama_init_from_model(m, p)
}

func cContextFree(ctx *C.struct_llama_context) { C.llama_free(ctx) }

func cMemoryClear(ctx *C.struct_llama_context) {
	C.llama_memory_clear(C.llama_get_memory(ctx), true)
}

func cBatchInit(capacity int32) C.llama_batch {
	return C.llama_batch_init(C.int32_t(capacity), 0, 1)
}

func cBatchFree(b C.llama_batch) { C.llama_batch_free(b) }

// cBatchSet rewrites the native batch in place from parallel entry slices.
// The native arrays were sized at cBatchInit time; callers never exceed that
// capacity.
func cBatchSet(b *C.llama_batch, tokens []llm.Token, pos []int32, logits []bool) {
	n := len(tokens)
	ctok := unsafe.Slice(b.token, n)
	cpos := unsafe.Slice(b.pos, n)
	cnseq := unsafe.Slice(b.n_seq_id, n)
	cseq := unsafe.Slice(b.seq_id, n)
	clog := unsafe.Slice(b.logits, n)
	for i := 0; i < n; i++ {
		ctok[i] = C.llama_token(tokens[i])
		cpos[i] = C.llama_pos(pos[i])
		cnseq[i] = 1
		unsafe.Slice(cseq[i], 1)[0] = 0
		if logits[i] {
			clog[i] = 1
		} else {
			clog[i] = 0
		}
	}
	b.n_tokens = C.int32_t(n)
}

func cDecode(ctx *C.struct_llama_context, b C.llama_batch) int {
	return int(C.llama_decode(ctx, b))
}

func cTokenize(v *C.struct_llama_vocab, text string, dst []llm.Token, addSpecial, parseSpecial bool) int {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	var dstPtr *C.llama_token
	if len(dst) > 0 {
		dstPtr = (*C.llama_token)(unsafe.Pointer(&dst[0]))
	}
	n := int(C.llama_tokenize(v, ctext, C.int32_t(len(text)),
		dstPtr, C.int32_t(len(dst)), C.bool(addSpecial), C.bool(parseSpecial)))
	runtime.KeepAlive(dst)
	return n
}

func cTokenToPiece(v *C.struct_llama_vocab, token int32, dst []byte) int {
	var dstPtr *C.char
	if len(dst) > 0 {
		dstPtr = (*C.char)(unsafe.Pointer(&dst[0]))
	}
	n := int(C.llama_token_to_piece(v, C.llama_token(token),
		dstPtr, C.int32_t(len(dst)), 0, true))
	runtime.KeepAlive(dst)
	return n
}

func cVocabIsEOG(v *C.struct_llama_vocab, token int32) bool {
	return bool(C.llama_vocab_is_eog(v, C.llama_token(token)))
}

func cVocabNTokens(v *C.struct_llama_vocab) int {
	return int(C.llama_vocab_n_tokens(v))
}

func cSamplerChainNew(topK int32, topP float32, minKeep int, temp float32, seed uint32) *C.struct_llama_sampler {
	chain := C.llama_sampler_chain_init(C.llama_sampler_chain_default_params())
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_k(C.int32_t(topK)))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_p(C.float(topP), C.size_t(minKeep)))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_temp(C.float(temp)))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_dist(C.uint32_t(seed)))
	return chain
}

func cSamplerSample(s *C.struct_llama_sampler, ctx *C.struct_llama_context) int32 {
	return int32(C.llama_sampler_sample(s, ctx, -1))
}

func cSamplerReset(s *C.struct_llama_sampler) { C.llama_sampler_reset(s) }

func cSamplerFree(s *C.struct_llama_sampler) { C.llama_sampler_free(s) }
