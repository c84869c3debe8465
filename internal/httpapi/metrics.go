package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	modelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "model_loaded",
			Help:      "1 when a model is loaded, 0 otherwise",
		},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Total model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Total generations by outcome",
		},
		[]string{"outcome"},
	)

	generatedTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generated_tokens_total",
			Help:      "Total tokens streamed to clients",
		},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one generation in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	promptTokensHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "prompt_tokens",
			Help:      "Prompt length in tokens after truncation",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		modelLoaded, loadsTotal,
		generationsTotal, generatedTokensTotal, generationDuration, promptTokensHist,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streamed responses keep
// flushing through the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.WithLabelValues(r.URL.Path).Inc()
		defer httpInflight.WithLabelValues(r.URL.Path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// The chi route pattern is only known after routing ran.
		path := routePatternOrPath(r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// RecordLoad counts one load attempt and reflects the resulting session
// state on the loaded gauge.
func RecordLoad(outcome string, loaded bool) {
	loadsTotal.WithLabelValues(outcome).Inc()
	SetModelLoaded(loaded)
}

// SetModelLoaded flips the loaded gauge.
func SetModelLoaded(loaded bool) {
	if loaded {
		modelLoaded.Set(1)
		return
	}
	modelLoaded.Set(0)
}

// recordGeneration counts one finished generation and its token volumes.
func recordGeneration(outcome string, tokens, prompt int, dur time.Duration) {
	generationsTotal.WithLabelValues(outcome).Inc()
	if tokens > 0 {
		generatedTokensTotal.Add(float64(tokens))
	}
	generationDuration.Observe(dur.Seconds())
	if prompt > 0 {
		promptTokensHist.Observe(float64(prompt))
	}
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
