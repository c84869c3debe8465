package session

import (
	"errors"
	"fmt"
	"sync"

	"inferd/internal/llm"
)

// fakeBackend scripts model behavior for session tests. One prompt byte
// becomes one token id and sampled tokens come from a preloaded script.
// Every resource transition is recorded so tests can assert release order
// and catch use-after-close.
type fakeBackend struct {
	mu sync.Mutex

	// next-load scripting
	loadErr  error
	vocabErr error
	ctxErr   error
	params   uint64
	desc     string
	trained  int

	// generation scripting
	script        []llm.Token
	repeat        llm.Token // sampled forever once the script is drained; 0 = EOG
	pieces        map[llm.Token]string
	firstTokNeg   bool          // first Tokenize call returns the negative sentinel
	decodeFailAt  int           // 1-based index of the Decode call that fails; 0 = never
	decodeBlock   chan struct{} // when non-nil every Decode receives from it first
	decodeStarted chan struct{} // closed on the first Decode
	startOnce     sync.Once

	// recording
	seq            int
	closed         []string
	decodes        []decodeRecord
	clears         int
	resets         int
	tokenizeCalls  int
	tokenTextCalls map[llm.Token]int
	violations     []string
}

type decodeRecord struct {
	tokens []llm.Token
	pos    []int32
	logits []bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		params:         1_000_000,
		desc:           "llama tiny Q4_K_M",
		trained:        4096,
		pieces:         map[llm.Token]string{},
		tokenTextCalls: map[llm.Token]int{},
	}
}

// scriptTokens converts s into the token ids the fake vocabulary produces
// for it, usable both as a sampler script and as expected prompt tokens.
func scriptTokens(s string) []llm.Token {
	out := make([]llm.Token, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = llm.Token(s[i])
	}
	return out
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) LoadModel(path string, p llm.ModelParams) (llm.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.GPULayers != 0 || !p.UseMmap || p.UseMlock {
		b.violations = append(b.violations, fmt.Sprintf("unexpected model params %+v", p))
	}
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	b.seq++
	return &fakeModel{b: b, id: b.seq}, nil
}

func (b *fakeBackend) violationList() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.violations...)
}

func (b *fakeBackend) closedList() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

func (b *fakeBackend) decodeList() []decodeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]decodeRecord(nil), b.decodes...)
}

func (b *fakeBackend) setScript(toks []llm.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = toks
}

type fakeModel struct {
	b      *fakeBackend
	id     int
	closed bool
}

func (m *fakeModel) Vocab() (llm.Vocab, error) {
	if m.b.vocabErr != nil {
		return nil, m.b.vocabErr
	}
	return &fakeVocab{b: m.b, model: m}, nil
}

func (m *fakeModel) ParamCount() uint64  { return m.b.params }
func (m *fakeModel) Description() string { return m.b.desc }
func (m *fakeModel) TrainedContext() int { return m.b.trained }

func (m *fakeModel) NewContext(p llm.ContextParams) (llm.Context, error) {
	if m.b.ctxErr != nil {
		return nil, m.b.ctxErr
	}
	if p.Embeddings {
		m.b.violations = append(m.b.violations, "embeddings enabled")
	}
	return &fakeContext{b: m.b, model: m, id: m.id}, nil
}

func (m *fakeModel) NewSampler(llm.SamplerConfig) llm.Sampler {
	return &fakeSampler{b: m.b, id: m.id}
}

func (m *fakeModel) Close() error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if m.closed {
		m.b.violations = append(m.b.violations, fmt.Sprintf("model%d double close", m.id))
		return nil
	}
	m.closed = true
	m.b.closed = append(m.b.closed, fmt.Sprintf("model%d", m.id))
	return nil
}

type fakeVocab struct {
	b     *fakeBackend
	model *fakeModel
}

func (v *fakeVocab) Tokenize(text string, addSpecial bool, dst []llm.Token) int {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	v.b.tokenizeCalls++
	if !addSpecial {
		v.b.violations = append(v.b.violations, "tokenize without special prefix")
	}
	if v.b.firstTokNeg && v.b.tokenizeCalls == 1 {
		return -len(text)
	}
	if len(dst) < len(text) {
		return -len(text)
	}
	for i := 0; i < len(text); i++ {
		dst[i] = llm.Token(text[i])
	}
	return len(text)
}

func (v *fakeVocab) TokenText(t llm.Token, dst []byte) int {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	if v.model.closed {
		v.b.violations = append(v.b.violations, "token text after model close")
		return 0
	}
	v.b.tokenTextCalls[t]++
	p := v.b.pieceLocked(t)
	if len(dst) < len(p) {
		return -len(p)
	}
	copy(dst, p)
	return len(p)
}

func (v *fakeVocab) IsEOG(t llm.Token) bool { return t == 0 }
func (v *fakeVocab) Size() int              { return 256 }

func (b *fakeBackend) pieceLocked(t llm.Token) string {
	if p, ok := b.pieces[t]; ok {
		return p
	}
	return string(rune(t))
}

type fakeContext struct {
	b      *fakeBackend
	model  *fakeModel
	id     int
	closed bool
}

func (c *fakeContext) Decode(batch *llm.Batch) error {
	c.b.mu.Lock()
	block := c.b.decodeBlock
	started := c.b.decodeStarted
	c.b.mu.Unlock()
	if started != nil {
		c.b.startOnce.Do(func() { close(started) })
	}
	if block != nil {
		<-block
	}

	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.closed || c.model.closed {
		c.b.violations = append(c.b.violations, "decode after close")
		return nil
	}
	c.b.decodes = append(c.b.decodes, decodeRecord{
		tokens: append([]llm.Token(nil), batch.Tokens()...),
		pos:    append([]int32(nil), batch.Positions()...),
		logits: append([]bool(nil), batch.Logits()...),
	})
	if c.b.decodeFailAt > 0 && len(c.b.decodes) == c.b.decodeFailAt {
		return errors.New("scripted decode failure")
	}
	return nil
}

func (c *fakeContext) ClearMemory() {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.closed {
		c.b.violations = append(c.b.violations, "clear after close")
		return
	}
	c.b.clears++
}

func (c *fakeContext) Close() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.closed {
		c.b.violations = append(c.b.violations, fmt.Sprintf("ctx%d double close", c.id))
		return nil
	}
	c.closed = true
	c.b.closed = append(c.b.closed, fmt.Sprintf("ctx%d", c.id))
	return nil
}

type fakeSampler struct {
	b      *fakeBackend
	id     int
	closed bool
}

func (s *fakeSampler) Sample(llm.Context) llm.Token {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		s.b.violations = append(s.b.violations, "sample after close")
		return 0
	}
	if len(s.b.script) == 0 {
		return s.b.repeat
	}
	t := s.b.script[0]
	s.b.script = s.b.script[1:]
	return t
}

func (s *fakeSampler) Reset() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.resets++
}

func (s *fakeSampler) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		s.b.violations = append(s.b.violations, fmt.Sprintf("sampler%d double close", s.id))
		return nil
	}
	s.closed = true
	s.b.closed = append(s.b.closed, fmt.Sprintf("sampler%d", s.id))
	return nil
}
