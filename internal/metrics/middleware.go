package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Response headers the search handlers set and the middleware reads back.
const (
	EmbeddingSourceHeader   = "X-Embedding-Source"
	EmbeddingFallbackHeader = "X-Embedding-Fallback"
)

const scrapePath = "/metrics"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grantsearch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpEmbeddedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "http_embedded_responses_total",
			Help:      "Responses that embedded text, by route, embedding source and fallback",
		},
		[]string{"path", "source", "fallback"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpEmbeddedResponsesTotal)
}

// Middleware records request duration and count per route pattern, and
// counts responses that carry an embedding source. Scrapes of /metrics
// are not recorded.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == scrapePath {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())
			status := strconv.Itoa(ww.status)
			httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()

			if src := ww.Header().Get(EmbeddingSourceHeader); src != "" {
				fallback := strconv.FormatBool(ww.Header().Get(EmbeddingFallbackHeader) == "true")
				httpEmbeddedResponsesTotal.WithLabelValues(path, src, fallback).Inc()
			}
		})
	}
}

// normalizePath keeps label cardinality bounded: unmatched routes collapse
// to "unknown" so arbitrary record ids never become label values.
func normalizePath(pattern string) string {
	if pattern == "" {
		return "unknown"
	}
	return pattern
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
