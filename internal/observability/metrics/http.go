package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

const namespace = "campus_search"

type HTTPServerMetrics struct {
	*breakerMetrics
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal    *prometheus.CounterVec
	retrieverFailuresTotal *prometheus.CounterVec
	judgeOutcomesTotal     *prometheus.CounterVec
	dedupDroppedTotal      *prometheus.CounterVec
	contentMissesTotal     *prometheus.CounterVec
	fusedCandidates        *prometheus.HistogramVec
	searchResults          *prometheus.HistogramVec
	searchDuration         *prometheus.HistogramVec
	rejectedTotal          *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests shed by traffic control by reason.",
		},
		[]string{"service", "reason"},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total served retrieval requests by mode.",
		},
		[]string{"service", "mode"},
	)
	retrieverFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "retriever_failures_total",
			Help:      "Retriever calls that failed or were unavailable.",
		},
		[]string{"service", "retriever"},
	)
	judgeOutcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "judge_outcomes_total",
			Help:      "Relevance judge outcomes (applied, fallback, skipped).",
		},
		[]string{"service", "outcome"},
	)
	dedupDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "dedup_dropped_total",
			Help:      "Candidates dropped as duplicates of a better ranked page.",
		},
		[]string{"service"},
	)
	contentMissesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "content_misses_total",
			Help:      "Candidates whose document could not be resolved from the store.",
		},
		[]string{"service"},
	)
	fusedCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "fused_candidates",
			Help:      "Distribution of fused candidates per request.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service", "mode"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of returned results per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"service", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		searchRequestsTotal,
		retrieverFailuresTotal,
		judgeOutcomesTotal,
		dedupDroppedTotal,
		contentMissesTotal,
		fusedCandidates,
		searchResults,
		searchDuration,
	)

	return &HTTPServerMetrics{
		breakerMetrics:         newBreakerMetrics(registry, service),
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		rejectedTotal:          rejectedTotal,
		searchRequestsTotal:    searchRequestsTotal,
		retrieverFailuresTotal: retrieverFailuresTotal,
		judgeOutcomesTotal:     judgeOutcomesTotal,
		dedupDroppedTotal:      dedupDroppedTotal,
		contentMissesTotal:     contentMissesTotal,
		fusedCandidates:        fusedCandidates,
		searchResults:          searchResults,
		searchDuration:         searchDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch path {
	case "/search", "/v1/search", "/ask", "/v1/ask", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}

// RecordSearch turns one request's retrieval trace into pipeline metrics.
func (m *HTTPServerMetrics) RecordSearch(service, mode string, trace domain.RetrievalTrace, results int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchRequestsTotal.WithLabelValues(service, mode).Inc()
	m.fusedCandidates.WithLabelValues(service, mode).Observe(float64(trace.Fused))
	m.searchResults.WithLabelValues(service, mode).Observe(float64(results))
	m.searchDuration.WithLabelValues(service, mode).Observe(duration.Seconds())

	if trace.LexicalFailed {
		m.retrieverFailuresTotal.WithLabelValues(service, string(domain.SourceLexical)).Inc()
	}
	if trace.SemanticFailed {
		m.retrieverFailuresTotal.WithLabelValues(service, string(domain.SourceSemantic)).Inc()
	}
	if trace.Judge != "" {
		m.judgeOutcomesTotal.WithLabelValues(service, string(trace.Judge)).Inc()
	}
	if trace.DedupDropped > 0 {
		m.dedupDroppedTotal.WithLabelValues(service).Add(float64(trace.DedupDropped))
	}
	if trace.ContentMisses > 0 {
		m.contentMissesTotal.WithLabelValues(service).Add(float64(trace.ContentMisses))
	}
}

// RecordRetrievalOutage counts a request that failed because both
// retrievers were down.
func (m *HTTPServerMetrics) RecordRetrievalOutage(service string) {
	m.retrieverFailuresTotal.WithLabelValues(service, string(domain.SourceLexical)).Inc()
	m.retrieverFailuresTotal.WithLabelValues(service, string(domain.SourceSemantic)).Inc()
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejectedTotal.WithLabelValues(service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
