package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/session"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	// ResolvePath maps a registry id or a file path onto a loadable model
	// path. The boolean is false when nothing matches.
	ResolvePath(model string) (string, bool)
	Load(path string, p session.LoadParams) error
	Unload()
	Generate(ctx context.Context, prompt string, maxTokens int, onToken session.TokenFunc) (session.Result, error)
	Stop() bool
	Status() types.StatusResponse
	Info() types.ModelInfo
	IsLoaded() bool
	Models() ([]types.Model, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/load", loadHandler(svc))
		r.Post("/unload", unloadHandler(svc))
		r.Post("/generate", generateHandler(svc))
		r.Post("/stop", stopHandler(svc))
		r.Get("/status", statusHandler(svc))
		r.Get("/models", modelsHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.IsLoaded() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no model loaded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// loadHandler resolves the requested model and swaps it into the session.
// A load while a generation is running stops and drains that generation
// first, so there is no conflict status here.
func loadHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		path, ok := svc.ResolvePath(req.Model)
		if !ok {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown model: %s", req.Model))
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		err := svc.Load(path, session.LoadParams{
			ContextSize: req.ContextSize,
			Threads:     req.Threads,
			GPULayers:   req.GPULayers,
		})
		if err != nil {
			RecordLoad("failed", svc.IsLoaded())
			status := loadStatus(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelError {
				logEnd(r, "load end", status, start, err)
			}
			return
		}
		RecordLoad("ok", true)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Info()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		if lvl >= LevelInfo {
			logEnd(r, "load end", http.StatusOK, start, nil)
		}
	}
}

func unloadHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Unload()
		SetModelLoaded(false)
		w.WriteHeader(http.StatusNoContent)
	}
}

func stopHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		was := svc.Stop()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.StopResponse{WasGenerating: was})
	}
}

func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	}
}

func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.Models()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	}
}

// requireJSON enforces a JSON content type on mutating endpoints.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}
