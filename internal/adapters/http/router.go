package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
	"github.com/kirillkom/campus-search/internal/observability/metrics"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	Logger           *slog.Logger
}

type Router struct {
	search  ports.SearchService
	ask     ports.AskService
	metrics *metrics.HTTPServerMetrics
	schemas *requestSchemas
	logger  *slog.Logger
	opts    Options
}

// NewRouter wires the serving layer. ask and m may be nil.
func NewRouter(search ports.SearchService, ask ports.AskService, m *metrics.HTTPServerMetrics, opts Options) (*Router, error) {
	if search == nil {
		return nil, errors.New("search service is required")
	}
	schemas, err := loadRequestSchemas(context.Background())
	if err != nil {
		return nil, err
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{search: search, ask: ask, metrics: m, schemas: schemas, logger: logger, opts: opts}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /search", rt.handleSearch)
	mux.HandleFunc("POST /v1/search", rt.handleSearch)
	mux.HandleFunc("POST /ask", rt.handleAsk)
	mux.HandleFunc("POST /v1/ask", rt.handleAsk)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var reject rejectFunc
	if rt.metrics != nil {
		reject = func(reason string) { rt.metrics.RecordRejected(rt.opts.Service, reason) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait, reject)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, reject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	UseJudge *bool  `json:"use_judge"`
	UseLLM   *bool  `json:"use_llm"`
}

// useJudge resolves the judge flag; use_judge wins over the legacy alias.
func (r searchRequest) useJudge() bool {
	switch {
	case r.UseJudge != nil:
		return *r.UseJudge
	case r.UseLLM != nil:
		return *r.UseLLM
	default:
		return true
	}
}

type searchResponse struct {
	Code int                `json:"code"`
	Data []domain.SearchHit `json:"data"`
}

func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !rt.decode(w, r, rt.schemas.search, &req) {
		return
	}

	start := time.Now()
	judged := req.useJudge()
	resp, err := rt.search.Search(r.Context(), req.Query, req.TopK, judged)
	if err != nil {
		rt.fail(w, r, "search", err)
		return
	}

	mode := "fusion"
	if resp.Trace.Judge != domain.JudgeSkipped {
		mode = "judged"
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.opts.Service, mode, resp.Trace, len(resp.Hits), time.Since(start))
	}

	hits := resp.Hits
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Code: http.StatusOK, Data: hits})
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Code       int                `json:"code"`
	Answer     string             `json:"answer"`
	References []domain.SearchHit `json:"references,omitempty"`
}

func (rt *Router) handleAsk(w http.ResponseWriter, r *http.Request) {
	if rt.ask == nil {
		writeError(w, http.StatusNotFound, "ask is not enabled")
		return
	}
	var req askRequest
	if !rt.decode(w, r, rt.schemas.ask, &req) {
		return
	}

	start := time.Now()
	answer, err := rt.ask.Ask(r.Context(), req.Query)
	if err != nil {
		rt.fail(w, r, "ask", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.opts.Service, "ask", answer.Trace, len(answer.References), time.Since(start))
	}
	writeJSON(w, http.StatusOK, askResponse{Code: http.StatusOK, Answer: answer.Text, References: answer.References})
}

func (rt *Router) decode(w http.ResponseWriter, r *http.Request, schema *openapi3.Schema, out any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := decodeValidated(raw, schema, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", op,
			"status", status,
			"error", err,
		)
		if rt.metrics != nil && domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			rt.metrics.RecordRetrievalOutage(rt.opts.Service)
		}
	}
	writeError(w, status, publicErrorMessage(status, err))
}

type errorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
