package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"inferd/pkg/types"
)

// generateHandler streams one generation as NDJSON: one line per token,
// then a terminal done line carrying the aggregate result. Failures before
// the first token map to a JSON error status; failures after it ride the
// done line so the streamed prefix stays usable.
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		// Join server base context with request context so shutdown cancels
		// running streams too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if sec := generateTimeout; sec > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(sec)*time.Second)
			defer tcancel()
		}

		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		writer := io.Writer(w)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		start := time.Now()
		if lvl >= LevelInfo {
			logStart(r, "generate start")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		streamed := false
		onToken := func(piece []byte) error {
			if _, err := writer.Write(tokenLineJSON(piece)); err != nil {
				return err
			}
			streamed = true
			if flush != nil {
				flush()
			}
			return nil
		}

		res, err := svc.Generate(ctx, req.Prompt, req.MaxTokens, onToken)
		if err != nil && !streamed {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				recordGeneration("cancelled", res.Tokens, res.PromptTokens, time.Since(start))
				return
			}
			status := generateStatus(err)
			recordGeneration("failed", res.Tokens, res.PromptTokens, time.Since(start))
			writeJSONError(w, status, err.Error())
			if lvl >= LevelError {
				logEnd(r, "generate end", status, start, err)
			}
			return
		}

		done := types.DoneEvent{
			Done:         true,
			Content:      res.Text,
			Tokens:       res.Tokens,
			PromptTokens: res.PromptTokens,
			Stopped:      res.Stopped,
			DurationMS:   res.Duration.Milliseconds(),
		}
		outcome := "ok"
		switch {
		case err != nil:
			done.Error = err.Error()
			outcome = "failed"
		case res.Stopped:
			outcome = "cancelled"
		}
		recordGeneration(outcome, res.Tokens, res.PromptTokens, time.Since(start))
		line, merr := json.Marshal(done)
		if merr != nil {
			return
		}
		if _, werr := writer.Write(append(line, '\n')); werr != nil {
			return
		}
		if flush != nil {
			flush()
		}
		if lvl >= LevelInfo {
			logEnd(r, "generate end", http.StatusOK, start, err)
		}
	}
}

// tokenLineJSON renders one token event as a single NDJSON line.
func tokenLineJSON(piece []byte) []byte {
	b, _ := json.Marshal(types.TokenEvent{Token: string(piece)})
	return append(b, '\n')
}
