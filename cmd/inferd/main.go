package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/llm"
	_ "inferd/internal/llm/llamacpp" // cgo backend, or its stub without the llama tag
	"inferd/internal/llm/yzma"
	"inferd/internal/session"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("INFERD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultModelsDir := "~/models/llm"
	if v := os.Getenv("INFERD_MODELS_DIR"); v != "" {
		defaultModelsDir = v
	}

	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("INFERD_CONFIG"), "Optional config file (.yaml, .json or .toml); explicit flags win over it")
	modelsDir := flag.String("models-dir", defaultModelsDir, "Directory to scan for *.gguf model files")
	model := flag.String("model", "", "Model id or path to load at startup")
	backendName := flag.String("backend", yzma.Name, "Inference backend")
	libPath := flag.String("lib-path", "", "Directory holding the llama shared libraries")
	contextSize := flag.Int("context-size", 0, "Requested context size for the startup load (0 = device plan)")
	threads := flag.Int("threads", 0, "Requested thread count for the startup load (0 = device plan)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	logPretty := flag.Bool("log-pretty", false, "Human-readable console logs instead of JSON")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	genTimeout := flag.Int("generate-timeout", 0, "Per-request generation timeout in seconds (0 disables)")
	flag.Parse()

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// Config file fills in whatever the command line left at its default.
	if *configPath != "" {
		fc, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		if !explicit["addr"] && fc.Addr != "" {
			*addr = fc.Addr
		}
		if !explicit["models-dir"] && fc.ModelsDir != "" {
			*modelsDir = fc.ModelsDir
		}
		if !explicit["model"] && fc.Model != "" {
			*model = fc.Model
		}
		if !explicit["backend"] && fc.Backend != "" {
			*backendName = fc.Backend
		}
		if !explicit["lib-path"] && fc.LibPath != "" {
			*libPath = fc.LibPath
		}
		if !explicit["context-size"] && fc.ContextSize > 0 {
			*contextSize = fc.ContextSize
		}
		if !explicit["threads"] && fc.Threads > 0 {
			*threads = fc.Threads
		}
		if !explicit["log-level"] && fc.LogLevel != "" {
			*logLevel = fc.LogLevel
		}
		if !explicit["cors-origins"] && len(fc.CORSOrigins) > 0 {
			*corsOrigins = strings.Join(fc.CORSOrigins, ",")
		}
	}

	var out io.Writer = os.Stderr
	if *logPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(*logLevel)); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	httpapi.SetLogger(logger)

	// dlopen does not understand "~", expand it before handing the path down.
	if p, err := fsutil.ExpandHome(*libPath); err == nil {
		*libPath = p
	}

	var sess *session.Session
	backend, backendErr := llm.Open(*backendName, llm.Options{LibPath: *libPath})
	if backendErr != nil {
		logger.Warn().Err(backendErr).Str("backend", *backendName).
			Msg("backend unavailable; load and generate will fail until restart")
	} else {
		sess = session.NewWithConfig(session.SessionConfig{
			Backend:   backend,
			Publisher: logPublisher{log: logger},
		})
	}
	svc := newApp(sess, *modelsDir, backendErr)

	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Content-Type", "X-Log-Level"})
	}
	httpapi.SetGenerateTimeoutSeconds(int64(*genTimeout))

	// Base context lets shutdown cancel in-flight generation streams.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(svc)
	srv := &http.Server{Addr: *addr, Handler: mux}

	if *model != "" {
		loadStartupModel(logger, svc, sess, *model, *contextSize, *threads)
	}

	go func() {
		logger.Info().Str("addr", *addr).Str("models_dir", *modelsDir).Str("backend", *backendName).
			Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Cancel streams first so Shutdown can drain handlers quickly.
	stopStreams()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if sess != nil {
		sess.Unload()
	}
}

// loadStartupModel performs the optional boot-time load. Failures are logged
// and the daemon keeps serving; the model can be loaded later over the API.
func loadStartupModel(logger zerolog.Logger, svc *app, sess *session.Session, model string, contextSize, threads int) {
	if sess == nil {
		logger.Warn().Str("model", model).Msg("skipping startup load: backend unavailable")
		return
	}
	path, ok := svc.ResolvePath(model)
	if !ok {
		logger.Warn().Str("model", model).Msg("startup model not found")
		return
	}
	if err := sess.Load(path, session.LoadParams{ContextSize: contextSize, Threads: threads}); err != nil {
		httpapi.RecordLoad("failed", false)
		logger.Warn().Err(err).Str("model", model).Msg("startup load failed")
		return
	}
	httpapi.RecordLoad("ok", true)
	logger.Info().Str("model", model).Int("ctx", sess.ContextSize()).Msg("startup load done")
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
