package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"inferd/internal/httpapi"
	"inferd/internal/llm"
	"inferd/internal/registry"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty
// .gguf files and returns the directory path and the list of model IDs
// (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// service adapts a session plus a models directory to the httpapi.Service
// surface, the same wiring the daemon performs at startup.
type service struct {
	sess      *session.Session
	modelsDir string
}

func (s *service) ResolvePath(model string) (string, bool) {
	if models, err := registry.LoadDir(s.modelsDir); err == nil {
		if m := registry.Find(models, model); m != nil {
			return m.Path, true
		}
	}
	if st, err := os.Stat(model); err == nil && !st.IsDir() {
		return model, true
	}
	return "", false
}

func (s *service) Load(path string, p session.LoadParams) error { return s.sess.Load(path, p) }
func (s *service) Unload()                                      { s.sess.Unload() }
func (s *service) Generate(ctx context.Context, prompt string, maxTokens int, onToken session.TokenFunc) (session.Result, error) {
	return s.sess.Generate(ctx, prompt, maxTokens, onToken)
}
func (s *service) Stop() bool                   { return s.sess.Stop() }
func (s *service) Status() types.StatusResponse { return s.sess.Status() }
func (s *service) Info() types.ModelInfo        { return s.sess.Info() }
func (s *service) IsLoaded() bool               { return s.sess.IsLoaded() }
func (s *service) Models() ([]types.Model, error) {
	return registry.LoadDir(s.modelsDir)
}

// newServerForDir stands up the full stack over a scripted backend: registry
// scan, session, HTTP mux, test server. The returned backend can be scripted
// before issuing requests.
func newServerForDir(t *testing.T, modelsDir string) (*httptest.Server, *scriptedBackend) {
	t.Helper()
	b := newScriptedBackend()
	sess := session.NewWithConfig(session.SessionConfig{Backend: b})
	mux := httpapi.NewMux(&service{sess: sess, modelsDir: modelsDir})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(sess.Unload)
	return srv, b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// parseStream validates NDJSON ordering (token lines, then exactly one done
// line, nothing after) and returns the token pieces and the done event.
func parseStream(t *testing.T, body []byte) ([]string, types.DoneEvent) {
	t.Helper()
	var tokens []string
	var done types.DoneEvent
	seenDone := false
	for _, ln := range strings.Split(string(body), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if seenDone {
			t.Fatalf("stream line after done event: %s", ln)
		}
		var probe types.DoneEvent
		if err := json.Unmarshal([]byte(ln), &probe); err != nil {
			t.Fatalf("bad stream line %q: %v", ln, err)
		}
		if probe.Done {
			done = probe
			seenDone = true
			continue
		}
		var tok types.TokenEvent
		if err := json.Unmarshal([]byte(ln), &tok); err != nil {
			t.Fatalf("bad token line %q: %v", ln, err)
		}
		tokens = append(tokens, tok.Token)
	}
	if !seenDone {
		t.Fatal("stream ended without a done event")
	}
	return tokens, done
}

// tokensFor converts s into the token ids the scripted vocabulary produces
// for it: one byte, one token.
func tokensFor(s string) []llm.Token {
	out := make([]llm.Token, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = llm.Token(s[i])
	}
	return out
}

// scriptedBackend is a minimal llm.Backend whose sampler plays back a fixed
// token script and then signals end of generation. The vocabulary maps one
// byte to one token, so prompt token counts are predictable. Its description
// carries a whitelisted quantization marker so loads pass the safety gates.
type scriptedBackend struct {
	mu     sync.Mutex
	script []llm.Token
	gate   chan struct{}
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{script: tokensFor("ok")}
}

func (b *scriptedBackend) setScript(toks []llm.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = toks
}

// blockDecode makes every Decode wait until the returned release function is
// called. Call release (idempotent) before the test ends or teardown will
// hang draining the generation.
func (b *scriptedBackend) blockDecode() func() {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) LoadModel(path string, p llm.ModelParams) (llm.Model, error) {
	return &scriptedModel{b: b}, nil
}

type scriptedModel struct {
	b *scriptedBackend
}

func (m *scriptedModel) Vocab() (llm.Vocab, error) { return &scriptedVocab{}, nil }
func (m *scriptedModel) ParamCount() uint64        { return 1_000_000 }
func (m *scriptedModel) Description() string       { return "llama tiny Q4_K_M" }
func (m *scriptedModel) TrainedContext() int       { return 4096 }
func (m *scriptedModel) Close() error              { return nil }

func (m *scriptedModel) NewContext(p llm.ContextParams) (llm.Context, error) {
	return &scriptedContext{b: m.b}, nil
}

func (m *scriptedModel) NewSampler(llm.SamplerConfig) llm.Sampler {
	return &scriptedSampler{b: m.b}
}

type scriptedVocab struct{}

func (scriptedVocab) Tokenize(text string, addSpecial bool, dst []llm.Token) int {
	if len(dst) < len(text) {
		return -len(text)
	}
	for i := 0; i < len(text); i++ {
		dst[i] = llm.Token(text[i])
	}
	return len(text)
}

func (scriptedVocab) TokenText(t llm.Token, dst []byte) int {
	p := string(rune(t))
	if len(dst) < len(p) {
		return -len(p)
	}
	copy(dst, p)
	return len(p)
}

func (scriptedVocab) IsEOG(t llm.Token) bool { return t == 0 }
func (scriptedVocab) Size() int              { return 256 }

type scriptedContext struct {
	b *scriptedBackend
}

func (c *scriptedContext) Decode(*llm.Batch) error {
	c.b.mu.Lock()
	gate := c.b.gate
	c.b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return nil
}

func (c *scriptedContext) ClearMemory() {}
func (c *scriptedContext) Close() error { return nil }

type scriptedSampler struct {
	b *scriptedBackend
}

func (s *scriptedSampler) Sample(llm.Context) llm.Token {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if len(s.b.script) == 0 {
		return 0
	}
	t := s.b.script[0]
	s.b.script = s.b.script[1:]
	return t
}

func (s *scriptedSampler) Reset()       {}
func (s *scriptedSampler) Close() error { return nil }
