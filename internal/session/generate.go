package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inferd/internal/llm"
)

const (
	// promptReserve is held back from the context when sizing the prompt;
	// prompts are truncated from the front to fit the remainder.
	promptReserve = 16
	// tokenizeHeadroom pads the initial token-count estimate over the
	// prompt's byte length; the sentinel retry covers anything beyond it.
	tokenizeHeadroom = 32
)

// generation is the immutable snapshot one generation runs against, taken
// under mu at entry so the loop never reads session fields a later load
// could replace.
type generation struct {
	id        uint64
	vocab     llm.Vocab
	lctx      llm.Context
	sampler   llm.Sampler
	batch     *llm.Batch
	ctxSize   int
	batchSize int
	maxTokens int
	model     string
}

// Generate runs one streaming generation: tokenize, chunked prefill, then
// the per-token decode loop, invoking onToken synchronously and in order for
// every fragment. At most one generation is in flight; a concurrent call
// fails immediately with the already-generating error and leaves the active
// one untouched. Cancellation (Stop, Unload, or ctx) ends the call early
// with Result.Stopped set and a nil error. A decode failure mid-loop returns
// the partial result alongside the error; everything streamed stays valid.
func (s *Session) Generate(ctx context.Context, prompt string, maxTokens int, onToken TokenFunc) (Result, error) {
	if !s.generating.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyGenerating()
	}
	s.mu.Lock()
	if s.model == nil {
		s.mu.Unlock()
		s.generating.Store(false)
		return Result{}, ErrNotLoaded()
	}
	id := s.genID.Add(1)
	s.stopID.Store(0)
	done := make(chan struct{})
	s.genDone = done
	g := generation{
		id:        id,
		vocab:     s.vocab,
		lctx:      s.lctx,
		sampler:   s.sampler,
		batch:     s.batch,
		ctxSize:   s.info.ActiveContext,
		batchSize: s.plan.BatchSize,
		maxTokens: s.plan.MaxGeneratedTokens,
		model:     s.modelPath,
	}
	s.mu.Unlock()

	s.publisher.Publish(Event{Name: "generate_start", Model: g.model, Fields: map[string]any{
		"generation_id": id,
		"prompt_bytes":  len(prompt),
		"max_tokens":    maxTokens,
	}})
	res, err := s.run(ctx, &g, prompt, maxTokens, onToken)

	// Close before releasing the gate so a drain waiting on this generation
	// can never see the gate free while holding a stale channel.
	close(done)
	s.generating.Store(false)

	switch {
	case err != nil:
		s.genFailed.Add(1)
		s.publisher.Publish(Event{Name: "generate_failed", Model: g.model, Fields: map[string]any{
			"generation_id": id,
			"tokens":        res.Tokens,
			"error":         err.Error(),
		}})
	case res.Stopped:
		s.genCancelled.Add(1)
		s.publisher.Publish(Event{Name: "generate_done", Model: g.model, Fields: map[string]any{
			"generation_id": id,
			"tokens":        res.Tokens,
			"stopped":       true,
			"duration_ms":   res.Duration.Milliseconds(),
		}})
	default:
		s.genOK.Add(1)
		s.publisher.Publish(Event{Name: "generate_done", Model: g.model, Fields: map[string]any{
			"generation_id": id,
			"tokens":        res.Tokens,
			"stopped":       false,
			"duration_ms":   res.Duration.Milliseconds(),
		}})
	}
	return res, err
}

func (s *Session) run(ctx context.Context, g *generation, prompt string, maxTokens int, onToken TokenFunc) (Result, error) {
	start := time.Now()
	// The plan's per-request ceiling truncates silently.
	if maxTokens < 1 {
		maxTokens = 1
	}
	if maxTokens > g.maxTokens {
		maxTokens = g.maxTokens
	}
	if onToken == nil {
		return Result{}, ErrCallbackUnavailable()
	}
	toks, err := tokenizePrompt(g.vocab, prompt)
	if err != nil {
		return Result{}, err
	}
	// Fresh sampler state and key/value memory for every request.
	g.sampler.Reset()
	g.lctx.ClearMemory()

	// Keep the trailing tokens when the prompt cannot fit alongside the
	// requested output.
	budget := g.ctxSize - maxTokens - promptReserve
	if budget < 1 {
		budget = 1
	}
	if len(toks) > budget {
		toks = toks[len(toks)-budget:]
	}

	// Prefill in batch-sized chunks. Only the final token of the final
	// chunk requests logits; the rest fill the key/value memory.
	for off := 0; off < len(toks); off += g.batchSize {
		if s.stopRequested(ctx, g.id) {
			return Result{PromptTokens: len(toks), Stopped: true, Duration: time.Since(start)}, nil
		}
		end := off + g.batchSize
		if end > len(toks) {
			end = len(toks)
		}
		g.batch.Reset()
		for i := off; i < end; i++ {
			g.batch.Add(toks[i], int32(i), i == len(toks)-1)
		}
		if err := g.lctx.Decode(g.batch); err != nil {
			return Result{PromptTokens: len(toks), Duration: time.Since(start)},
				ErrPromptEval(off/g.batchSize, err)
		}
	}

	var sb strings.Builder
	sb.Grow(maxTokens * 8)
	buf := s.pieceBuf
	pos := len(toks)
	generated := 0
	stopped := false
	for generated < maxTokens && pos < g.ctxSize {
		if s.stopRequested(ctx, g.id) {
			stopped = true
			break
		}
		tok := g.sampler.Sample(g.lctx)
		if g.vocab.IsEOG(tok) {
			break
		}
		n := g.vocab.TokenText(tok, buf)
		if n < 0 {
			// One resize-and-retry at the hinted size.
			if need := -n; need > len(buf) {
				buf = make([]byte, need)
				s.pieceBuf = buf
			}
			n = g.vocab.TokenText(tok, buf)
			if n < 0 {
				n = 0
			}
		}
		piece := buf[:n]
		sb.Write(piece)
		if cbErr := onToken(piece); cbErr != nil {
			return Result{
				Text:         sb.String(),
				PromptTokens: len(toks),
				Tokens:       generated + 1,
				Duration:     time.Since(start),
			}, cbErr
		}
		g.batch.Reset()
		g.batch.Add(tok, int32(pos), true)
		if err := g.lctx.Decode(g.batch); err != nil {
			return Result{
				Text:         sb.String(),
				PromptTokens: len(toks),
				Tokens:       generated + 1,
				Duration:     time.Since(start),
			}, ErrDecodeStep(generated+1, err)
		}
		pos++
		generated++
	}

	return Result{
		Text:         sb.String(),
		PromptTokens: len(toks),
		Tokens:       generated,
		Stopped:      stopped,
		Duration:     time.Since(start),
	}, nil
}

// stopRequested reports whether the generation identified by id should halt:
// either the stop epoch matches or the caller's context ended.
func (s *Session) stopRequested(ctx context.Context, id uint64) bool {
	if s.stopID.Load() == id {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// tokenizePrompt converts prompt with the special-token prefix enabled,
// honoring the negative-size sentinel with exactly one resize-and-retry.
func tokenizePrompt(v llm.Vocab, prompt string) ([]llm.Token, error) {
	dst := make([]llm.Token, len(prompt)+tokenizeHeadroom)
	n := v.Tokenize(prompt, true, dst)
	if n < 0 {
		dst = make([]llm.Token, -n)
		n = v.Tokenize(prompt, true, dst)
	}
	if n <= 0 {
		return nil, ErrTokenization(fmt.Sprintf("tokenizer returned %d for %d-byte prompt", n, len(prompt)))
	}
	return dst[:n], nil
}

// Stop requests cancellation of the in-flight generation. Safe to call at
// any time from any goroutine; when idle it is a no-op. Returns whether a
// generation was active when the signal was set.
func (s *Session) Stop() bool {
	if !s.generating.Load() {
		return false
	}
	id := s.genID.Load()
	s.stopID.Store(id)
	s.publisher.Publish(Event{Name: "stop_requested", Fields: map[string]any{
		"generation_id": id,
	}})
	return true
}
