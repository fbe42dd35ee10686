// Package chi is the HTTP API: search, record change events, record and
// vector lookup, re-index, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/request"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/result"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	logpkg "github.com/abckeishi-spec/keishi9-sub000/internal/logger"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
	healthuc "github.com/abckeishi-spec/keishi9-sub000/internal/usecase/health"
	"github.com/abckeishi-spec/keishi9-sub000/internal/usecase/indexing"
	"github.com/abckeishi-spec/keishi9-sub000/internal/usecase/usage"
)

const maxBodyBytes = 1 << 20

// Searcher runs ranked searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (result.Page, error)
}

// RecordService handles record change events and lookups.
type RecordService interface {
	Upsert(ctx context.Context, rec *domrec.Record) (bool, error)
	Get(ctx context.Context, id string) (domrec.Record, error)
	Delete(ctx context.Context, id string) error
	Vector(ctx context.Context, id, kind string) (vector.Vector, error)
}

// Indexer rebuilds every stored vector.
type Indexer interface {
	Reindex(ctx context.Context) (indexing.ReindexResult, error)
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	Report(ctx context.Context, period usage.Period) usage.Report
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	records       RecordService
	indexer       Indexer
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	records RecordService,
	indexer Indexer,
	usageReporter UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:  search,
		records: records,
		indexer: indexer,
		usage:   usageReporter,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeRecordNotFound),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, ErrorCodeConflict),
		sentinelHandler(domain.ErrRecordStoreUnavailable,
			http.StatusServiceUnavailable, ErrorCodeRecordStoreUnavailable),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		r.Post("/search", s.SearchPost)
		r.Get("/search", s.SearchGet)

		r.Route("/records/{id}", func(r gochi.Router) {
			r.Put("/", s.UpsertRecord)
			r.Get("/", s.GetRecord)
			r.Delete("/", s.DeleteRecord)
			r.Get("/vector", s.GetVector)
		})

		r.Post("/admin/reindex", s.Reindex)
		r.Get("/admin/usage", s.GetUsage)
	})
}

// SearchPost handles POST /v1/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	limit := 0
	if req.Limit != nil {
		if *req.Limit <= 0 || *req.Limit > request.MaxLimit {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				fmt.Sprintf("limit must be between 1 and %d", request.MaxLimit))
			return
		}
		limit = *req.Limit
	}

	s.runSearch(w, r, req.Query, filters, limit)
}

// SearchGet handles GET /v1/search?q=...&limit=...
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > request.MaxLimit {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				fmt.Sprintf("limit must be between 1 and %d", request.MaxLimit))
			return
		}
		limit = n
	}

	s.runSearch(w, r, q.Get("q"), filter.Expression{}, limit)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, query string, filters filter.Expression, limit int) {
	req, err := request.New(query, filters, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, embUsage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results := page.Results
	if results == nil {
		results = []result.Ranked{}
	}
	setEmbeddingHeaders(w, embUsage)
	writeJSON(w, http.StatusOK, searchResponse{Count: page.Count, Results: results})
}

// UpsertRecord handles PUT /v1/records/{id}.
func (s *Server) UpsertRecord(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "id")

	var rec domrec.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if rec.ID != "" && rec.ID != id {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "body id does not match path id")
		return
	}
	rec.ID = id

	ctx, embUsage := domain.NewContextWithUsage(r.Context())
	created, err := s.records.Upsert(ctx, &rec)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	setEmbeddingHeaders(w, embUsage)
	writeJSON(w, status, recordResponse{Record: rec, Created: created})
}

// GetRecord handles GET /v1/records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Record: rec})
}

// DeleteRecord handles DELETE /v1/records/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Delete(r.Context(), gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVector handles GET /v1/records/{id}/vector?kind=...
func (s *Server) GetVector(w http.ResponseWriter, r *http.Request) {
	v, err := s.records.Vector(r.Context(), gochi.URLParam(r, "id"), r.URL.Query().Get("kind"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorResponse{
		RecordID:          v.RecordID,
		Kind:              v.Kind,
		Dimensions:        len(v.Components),
		Components:        v.Components,
		Source:            v.Metadata.Source,
		VocabularyVersion: v.Metadata.VocabularyVersion,
		UpdatedAt:         v.UpdatedAt,
	})
}

// Reindex handles POST /v1/admin/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	res, err := s.indexer.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reindexResponse{
		Indexed:           res.Indexed,
		Failed:            res.Failed,
		VocabularyVersion: res.VocabularyVersion,
		VocabularyTerms:   res.VocabularyTerms,
		DurationSeconds:   res.Duration.Seconds(),
	})
}

// GetUsage handles GET /v1/admin/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := usage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Report(r.Context(), period))
}

// HealthCheck handles GET /health.
// Degraded still serves search, so only an unhealthy report returns 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func setEmbeddingHeaders(w http.ResponseWriter, u *domain.EmbeddingUsage) {
	if u == nil {
		return
	}
	if u.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(u.TotalTokens))
	}
	if u.Source != "" {
		w.Header().Set(metrics.EmbeddingSourceHeader, u.Source)
	}
	if u.Fallback {
		w.Header().Set(metrics.EmbeddingFallbackHeader, "true")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Invalid input carries a client-safe message; other sentinels expose only their own text.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if errors.Is(sentinel, domain.ErrInvalidInput) {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err), zap.String("stage", domain.StageOf(err)))
			return
		}
	}
	log.Error("internal error", zap.Error(err), zap.String("stage", domain.StageOf(err)))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func filtersFromDTO(f *filterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromDTO(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromDTO(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromDTO(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromDTO(cs []filterCondition) ([]filter.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := filterConditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func filterConditionFromDTO(c filterCondition) (filter.Condition, error) {
	if c.Match != nil && c.Range != nil {
		return filter.Condition{},
			fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	}
	if c.Match != nil {
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	}
	if c.Range != nil {
		rf, err := filter.NewRangeFilter(c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
	return filter.Condition{},
		errors.New("filter condition must have either match or range")
}
