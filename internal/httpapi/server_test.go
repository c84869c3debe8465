package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inferd/internal/session"
	"inferd/pkg/types"
)

// fakeService scripts the session surface consumed by the mux. Generate
// streams genPieces through the callback and then returns genRes/genErr;
// with genWait set it blocks until the context is done and reports a
// stopped result instead.
type fakeService struct {
	paths      map[string]string
	loadErr    error
	loaded     bool
	loadedPath string
	loadParams session.LoadParams
	unloads    int
	stops      int
	stopRet    bool
	info       types.ModelInfo
	status     types.StatusResponse
	models     []types.Model
	modelsErr  error

	genPieces []string
	genRes    session.Result
	genErr    error
	genWait   bool
}

func (f *fakeService) ResolvePath(model string) (string, bool) {
	p, ok := f.paths[model]
	return p, ok
}

func (f *fakeService) Load(path string, p session.LoadParams) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	f.loadedPath = path
	f.loadParams = p
	return nil
}

func (f *fakeService) Unload() { f.unloads++; f.loaded = false }

func (f *fakeService) Generate(ctx context.Context, prompt string, maxTokens int, onToken session.TokenFunc) (session.Result, error) {
	if f.genWait {
		<-ctx.Done()
		return session.Result{Stopped: true}, nil
	}
	for _, p := range f.genPieces {
		if err := onToken([]byte(p)); err != nil {
			return f.genRes, err
		}
	}
	return f.genRes, f.genErr
}

func (f *fakeService) Stop() bool { f.stops++; return f.stopRet }

func (f *fakeService) Status() types.StatusResponse { return f.status }

func (f *fakeService) Info() types.ModelInfo { return f.info }

func (f *fakeService) IsLoaded() bool { return f.loaded }

func (f *fakeService) Models() ([]types.Model, error) { return f.models, f.modelsErr }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLoadHandler(t *testing.T) {
	svc := &fakeService{
		paths: map[string]string{"tiny": "/models/tiny.gguf"},
		info:  types.ModelInfo{Description: "llama tiny Q4_K_M", ActiveContext: 1024},
	}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/load", `{"model":"tiny","context_size":1024,"threads":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var info types.ModelInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("json: %v", err)
	}
	if info != svc.info {
		t.Fatalf("info=%+v", info)
	}
	if svc.loadedPath != "/models/tiny.gguf" {
		t.Fatalf("loaded path=%q", svc.loadedPath)
	}
	if svc.loadParams.ContextSize != 1024 || svc.loadParams.Threads != 4 {
		t.Fatalf("params=%+v", svc.loadParams)
	}
}

func TestLoadUnknownModel404(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/load", `{"model":"nope"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != http.StatusNotFound || !strings.Contains(resp.Error, "nope") {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestLoadModelRequired(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/load", `{"model":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestLoadBadJSON(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/load", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestLoadUnsupportedMediaType(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/v1/load", bytes.NewBufferString(`{"model":"tiny"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestLoadBodyTooLarge(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/load", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestUnloadHandler(t *testing.T) {
	svc := &fakeService{loaded: true}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/unload", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.unloads != 1 || svc.loaded {
		t.Fatalf("unloads=%d loaded=%v", svc.unloads, svc.loaded)
	}
}

func TestStopHandler(t *testing.T) {
	svc := &fakeService{stopRet: true}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/stop", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.StopResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.WasGenerating {
		t.Fatalf("resp=%+v", resp)
	}
	if svc.stops != 1 {
		t.Fatalf("stops=%d", svc.stops)
	}
}

func TestStopHandlerIdle(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := postJSON(t, h, "/v1/stop", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.StopResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.WasGenerating {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &fakeService{status: types.StatusResponse{State: "loaded", GenerationsOK: 41}}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.State != "loaded" || body.GenerationsOK != 41 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestModelsHandler(t *testing.T) {
	svc := &fakeService{models: []types.Model{{ID: "m1"}, {ID: "m2"}}}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestModelsHandlerError(t *testing.T) {
	svc := &fakeService{modelsErr: errors.New("scan failed")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	svc := &fakeService{loaded: true}
	h := NewMux(svc)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no model loaded") {
		t.Fatalf("body=%q", w.Body.String())
	}
}
