package testctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"inferd/pkg/types"
)

// smokeAuto picks the live smoke when a host model and a llama.cpp library
// are both available, and falls back to the API smoke otherwise. Setting
// TESTCTL_FORCE_LIVE=1 forces the live smoke.
func smokeAuto(cfg *Config) error {
	if envBool("TESTCTL_FORCE_LIVE", false) || (fnHasHostModels() && fnHasBackendLib()) {
		info("[testctl] Host model and backend library found, running live smoke")
		return fnSmokeLive(cfg)
	}
	info("[testctl] No host model or backend library, running API smoke")
	return fnSmokeAPI(cfg)
}

// smokeAPI boots the server against an empty models dir and checks the
// unloaded surface: health, readiness, model listing, and the error paths
// of load and generate. It needs no model files and no backend library.
func smokeAPI(cfg *Config) error {
	info("==== API smoke (no model) ====")
	port, err := preferOrFree(cfg.APIPort)
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "inferd-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	defer func() { _ = killProcesses() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := startServer(ctx, port, "--models-dir", dir)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Process.Kill() }()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	code, body, err := httpGet(base + "/readyz")
	if err != nil {
		return err
	}
	if code != http.StatusServiceUnavailable {
		return fmt.Errorf("readyz without a model: expected 503, got %d (%s)", code, body)
	}

	code, body, err = httpGet(base + "/v1/status")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("status: expected 200, got %d (%s)", code, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return fmt.Errorf("status: bad JSON: %w", err)
	}
	if st.State != "unloaded" {
		return fmt.Errorf("status: expected state unloaded, got %q", st.State)
	}

	code, body, err = httpGet(base + "/v1/models")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("models: expected 200, got %d (%s)", code, body)
	}
	var models types.ModelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return fmt.Errorf("models: bad JSON: %w", err)
	}
	if len(models.Models) != 0 {
		return fmt.Errorf("models: expected an empty list for %s, got %d entries", dir, len(models.Models))
	}

	code, body, err = httpPostJSON(base+"/v1/load", types.LoadRequest{Model: "no-such-model"})
	if err != nil {
		return err
	}
	if code != http.StatusNotFound {
		return fmt.Errorf("load of unknown model: expected 404, got %d (%s)", code, body)
	}

	code, body, err = httpPostJSON(base+"/v1/generate", types.GenerateRequest{Prompt: "hi"})
	if err != nil {
		return err
	}
	// 409 when the backend is present but nothing is loaded, 503 when the
	// backend library is missing on this machine.
	if code != http.StatusConflict && code != http.StatusServiceUnavailable {
		return fmt.Errorf("generate without a model: expected 409 or 503, got %d (%s)", code, body)
	}

	code, body, err = httpPostJSON(base+"/v1/stop", nil)
	if err != nil {
		return err
	}
	if code != http.StatusAccepted {
		return fmt.Errorf("stop: expected 202, got %d (%s)", code, body)
	}
	var stop types.StopResponse
	if err := json.Unmarshal(body, &stop); err != nil {
		return fmt.Errorf("stop: bad JSON: %w", err)
	}
	if stop.WasGenerating {
		return errors.New("stop: expected was_generating=false on an idle server")
	}

	if err := checkMetrics(base, "inferd_http_requests_total"); err != nil {
		return err
	}

	info("[smoke] API surface OK on port %d", port)
	return nil
}

// smokeLive boots the server, loads the first host model over HTTP, and
// validates a short streamed generation end to end.
func smokeLive(cfg *Config) error {
	dir := modelsDir()
	model, err := firstGGUF(dir)
	if err != nil {
		return fmt.Errorf("live smoke needs a host model: %w", err)
	}
	info("==== Live smoke (model: %s) ====", model)
	port, err := preferOrFree(cfg.APIPort)
	if err != nil {
		return err
	}
	defer func() { _ = killProcesses() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	args := []string{"--models-dir", dir}
	if lib := findLlamaLib(); lib != "" {
		args = append(args, "--lib-path", lib)
	}
	srv, err := startServer(ctx, port, args...)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Process.Kill() }()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	// Load over HTTP so the whole load path is covered, not just the
	// startup shortcut.
	code, body, err := httpPostJSON(base+"/v1/load", types.LoadRequest{Model: model})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("load %s: expected 200, got %d (%s)", model, code, body)
	}
	var mi types.ModelInfo
	if err := json.Unmarshal(body, &mi); err != nil {
		return fmt.Errorf("load: bad JSON: %w", err)
	}
	if mi.ActiveContext <= 0 {
		return fmt.Errorf("load: expected a positive active context, got %d", mi.ActiveContext)
	}
	info("[smoke] Loaded %s (ctx %d, threads %d)", model, mi.ActiveContext, mi.ThreadCount)

	code, body, err = httpGet(base + "/readyz")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("readyz with a model: expected 200, got %d (%s)", code, body)
	}

	start := time.Now()
	sum, err := streamGenerate(base, "Write a haiku about the sea.", 16)
	if err != nil {
		return err
	}
	if sum.Done.Error != "" {
		return fmt.Errorf("generation reported a decode error: %s", sum.Done.Error)
	}
	if sum.Done.Stopped {
		return errors.New("generation reported stopped without a stop call")
	}
	if sum.TokenLines == 0 {
		return errors.New("generation streamed no tokens")
	}
	if sum.Done.Tokens != sum.TokenLines {
		return fmt.Errorf("done event counts %d tokens but %d token lines were streamed", sum.Done.Tokens, sum.TokenLines)
	}
	if sum.Done.Content == "" {
		return errors.New("done event carries no content")
	}
	info("[smoke] Streamed %d tokens in %s", sum.TokenLines, time.Since(start).Round(time.Millisecond))

	if err := checkMetrics(base, "inferd_session_generations_total"); err != nil {
		return err
	}

	code, body, err = httpPostJSON(base+"/v1/stop", nil)
	if err != nil {
		return err
	}
	if code != http.StatusAccepted {
		return fmt.Errorf("stop: expected 202, got %d (%s)", code, body)
	}

	code, body, err = httpPostJSON(base+"/v1/unload", nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return fmt.Errorf("unload: expected 204, got %d (%s)", code, body)
	}
	code, _, err = httpGet(base + "/readyz")
	if err != nil {
		return err
	}
	if code != http.StatusServiceUnavailable {
		return fmt.Errorf("readyz after unload: expected 503, got %d", code)
	}

	info("[smoke] Live generation OK on port %d", port)
	return nil
}

// startServer launches the API server with `go run` from the repository root
// and waits for /healthz. The boot window is generous because go run builds
// the server on first use.
func startServer(ctx context.Context, port int, extraArgs ...string) (*exec.Cmd, error) {
	args := []string{"run", "./cmd/inferd", "--addr", fmt.Sprintf("127.0.0.1:%d", port)}
	args = append(args, extraArgs...)
	srv := exec.CommandContext(ctx, "go", args...)
	srv.Stdout = os.Stdout
	srv.Stderr = os.Stderr
	if err := srv.Start(); err != nil {
		return nil, err
	}
	TrackProcess(srv)
	if err := waitHTTP(fmt.Sprintf("http://127.0.0.1:%d/healthz", port), http.StatusOK, 120*time.Second); err != nil {
		return nil, err
	}
	return srv, nil
}

// streamSummary is the digest of one NDJSON generation stream.
type streamSummary struct {
	TokenLines int
	Done       types.DoneEvent
}

// checkStream validates one NDJSON generation stream: zero or more token
// lines followed by exactly one done line, nothing after it.
func checkStream(r io.Reader) (streamSummary, error) {
	var sum streamSummary
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	seenDone := false
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if seenDone {
			return sum, fmt.Errorf("stream has a line after the done event: %s", line)
		}
		var done types.DoneEvent
		if err := json.Unmarshal(line, &done); err != nil {
			return sum, fmt.Errorf("bad stream line %q: %w", line, err)
		}
		if done.Done {
			sum.Done = done
			seenDone = true
			continue
		}
		var tok types.TokenEvent
		if err := json.Unmarshal(line, &tok); err != nil {
			return sum, fmt.Errorf("bad token line %q: %w", line, err)
		}
		sum.TokenLines++
	}
	if err := sc.Err(); err != nil {
		return sum, err
	}
	if !seenDone {
		return sum, errors.New("stream ended without a done event")
	}
	return sum, nil
}

// streamGenerate posts one generation request and digests the NDJSON reply.
func streamGenerate(base, prompt string, maxTokens int) (streamSummary, error) {
	var sum streamSummary
	buf, err := json.Marshal(types.GenerateRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return sum, err
	}
	req, err := http.NewRequest(http.MethodPost, base+"/v1/generate", bytes.NewReader(buf))
	if err != nil {
		return sum, err
	}
	req.Header.Set("Content-Type", "application/json")
	// No client timeout: the response body is an open stream.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return sum, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return sum, fmt.Errorf("generate: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-ndjson") {
		return sum, fmt.Errorf("generate: unexpected content type %q", ct)
	}
	return checkStream(resp.Body)
}

// checkMetrics scrapes /metrics and requires the named series to be present.
func checkMetrics(base, series string) error {
	code, body, err := httpGet(base + "/metrics")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("metrics: expected 200, got %d", code)
	}
	if !strings.Contains(string(body), series) {
		return fmt.Errorf("metrics: %s not found in scrape", series)
	}
	return nil
}

func httpGet(url string) (int, []byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	debug("[http] GET %s -> %d", url, resp.StatusCode)
	return resp.StatusCode, body, nil
}

func httpPostJSON(url string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	debug("[http] POST %s -> %d", url, resp.StatusCode)
	return resp.StatusCode, body, nil
}
