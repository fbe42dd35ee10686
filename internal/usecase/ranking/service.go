// Package ranking turns a search query into an ordered list of grants by
// combining vector similarity with attribute heuristics and intent boosts.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/query"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/request"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/result"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/analyzer"
)

const excerptRunes = 120

// Config tunes the pipeline.
type Config struct {
	// PageSize caps the candidates requested from the record store.
	PageSize int
	// Kind is the vector kind compared against the query.
	Kind string
}

// Service is the ranking engine.
type Service struct {
	records RecordFinder
	vectors VectorStore
	query   Embedder // provider chain with local fallback
	local   Embedder // TF-IDF synthesizer
	cfg     Config
	clock   func() time.Time
	logger  *zap.Logger
}

// New creates a ranking service.
func New(
	records RecordFinder,
	vectors VectorStore,
	queryEmbedder Embedder,
	local Embedder,
	cfg Config,
	clock func() time.Time,
	logger *zap.Logger,
) *Service {
	if cfg.PageSize <= 0 || cfg.PageSize > domain.DefaultCandidatePageSize {
		cfg.PageSize = domain.DefaultCandidatePageSize
	}
	if cfg.Kind == "" {
		cfg.Kind = domain.DefaultVectorKind
	}
	if clock == nil {
		clock = time.Now
	}
	if queryEmbedder == nil {
		queryEmbedder = local
	}
	return &Service{
		records: records,
		vectors: vectors,
		query:   queryEmbedder,
		local:   local,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

// Search runs the full pipeline. A record store failure aborts the search
// with no partial results; every other per-candidate failure degrades that
// candidate to a relevance-only score.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	analysis := analyzer.Analyze(req.Query())

	expr, err := structuralFilter(req.Filters(), &analysis)
	if err != nil {
		return result.Page{}, s.fail(domain.StageFilter, err)
	}

	candidates, err := s.records.Find(ctx, expr, s.cfg.PageSize, domrec.SortModifiedDesc)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrRecordStoreUnavailable, err)
		}
		return result.Page{}, s.fail(domain.StageRecordStore, err)
	}
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	sc := &scorer{svc: s, query: req.Query()}
	sc.embedQuery(ctx)

	now := s.clock()
	ranked := make([]result.Ranked, 0, len(candidates))
	for i := range candidates {
		rec := &candidates[i]
		sim, matched := sc.similarity(ctx, rec)
		rel := relevance(rec, now)
		b := boost(rec, &analysis, now)
		r := enrich(rec, now)
		r.Similarity = sim
		r.SemanticMatched = matched
		r.Relevance = rel
		r.Boost = b
		r.Score = combine(sim, rel) * b
		ranked = append(ranked, r)
	}

	sortRanked(ranked)
	if len(ranked) > req.Limit() {
		ranked = ranked[:req.Limit()]
	}

	s.logger.Debug("Search ranked",
		zap.String("query", req.Query()),
		zap.Strings("intents", intentNames(analysis.Intents)),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(ranked)),
		zap.String("query_source", sc.queryRes.Source),
	)

	return result.Page{Count: len(ranked), Results: ranked}, nil
}

func (s *Service) fail(stage string, err error) error {
	metrics.SearchErrorsTotal.WithLabelValues(stage).Inc()
	return domain.NewStageError(stage, err)
}

// scorer holds the per-request query vectors. The local query vector is
// computed at most once, and only when a candidate needs it.
type scorer struct {
	svc   *Service
	query string

	queryRes domain.EmbeddingResult
	queryOK  bool

	localRes  domain.EmbeddingResult
	localDone bool
	localOK   bool
}

func (sc *scorer) embedQuery(ctx context.Context) {
	res, err := sc.svc.query.Embed(ctx, sc.query)
	if err != nil {
		metrics.SearchErrorsTotal.WithLabelValues(domain.StageEmbedQuery).Inc()
		sc.svc.logger.Warn("Query embedding failed, ranking by relevance only", zap.Error(err))
		return
	}
	sc.queryRes, sc.queryOK = res, true
	if res.Source == domain.SourceLocal {
		sc.localRes, sc.localDone, sc.localOK = res, true, true
	}
}

func (sc *scorer) localQuery(ctx context.Context) (domain.EmbeddingResult, bool) {
	if !sc.localDone {
		sc.localDone = true
		res, err := sc.svc.local.Embed(ctx, sc.query)
		if err != nil {
			sc.svc.logger.Warn("Local query embedding failed", zap.Error(err))
		} else {
			sc.localRes, sc.localOK = res, true
		}
	}
	return sc.localRes, sc.localOK
}

// similarity compares the candidate with a query vector of the same source.
// ok is false when no comparable pair could be produced.
func (sc *scorer) similarity(ctx context.Context, rec *domrec.Record) (float64, bool) {
	kind := sc.svc.cfg.Kind
	stored, err := sc.svc.vectors.Get(ctx, rec.ID, kind)
	found := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		sc.svc.logger.Warn("Vector lookup failed", zap.String("record_id", rec.ID), zap.Error(err))
	}

	if found && sc.queryOK && sc.comparable(&stored, &sc.queryRes) {
		return compare(sc.queryRes.Embedding, stored.Components)
	}

	lq, ok := sc.localQuery(ctx)
	if !ok {
		return 0, false
	}
	if found && sc.comparable(&stored, &lq) {
		return compare(lq.Embedding, stored.Components)
	}

	// Stored vectors from another provider are left alone; local vectors
	// that are missing, stale or corrupt are rebuilt and written through.
	persist := true
	reason := "missing"
	if found {
		switch {
		case stored.Metadata.Source != domain.SourceLocal:
			persist = false
		case len(stored.Components) != len(lq.Embedding):
			reason = "corrupt"
			metrics.VectorStoreCorruptTotal.WithLabelValues(kind).Inc()
		default:
			reason = "stale"
		}
	}

	cand, err := sc.svc.local.Embed(ctx, rec.CanonicalText())
	if err != nil {
		sc.svc.logger.Warn("Candidate synthesis failed, ranking by relevance only",
			zap.String("record_id", rec.ID), zap.Error(err))
		return 0, false
	}
	if persist {
		sc.svc.writeThrough(ctx, rec, kind, cand, reason)
	}
	return compare(lq.Embedding, cand.Embedding)
}

// comparable reports whether stored can be compared with q: same source,
// same length and, for local vectors, the same vocabulary snapshot.
func (sc *scorer) comparable(stored *vector.Vector, q *domain.EmbeddingResult) bool {
	if stored.Metadata.Source != q.Source || len(stored.Components) != len(q.Embedding) {
		return false
	}
	if q.Source == domain.SourceLocal && stored.Metadata.VocabularyVersion != q.VocabularyVersion {
		return false
	}
	return true
}

func (s *Service) writeThrough(ctx context.Context, rec *domrec.Record, kind string, res domain.EmbeddingResult, reason string) {
	v := vector.Vector{
		RecordID:   rec.ID,
		Kind:       kind,
		Components: res.Embedding,
		Metadata: vector.Metadata{
			Source:            res.Source,
			Model:             domain.ModelOf(res.Source),
			VocabularyVersion: res.VocabularyVersion,
			TextHash:          vector.HashText(rec.CanonicalText()),
			Title:             rec.Title,
		},
	}
	if _, err := s.vectors.Upsert(ctx, v); err != nil {
		s.logger.Warn("Write-through upsert failed", zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	metrics.SearchWriteThroughTotal.WithLabelValues(reason).Inc()
}

// compare returns cosine similarity clamped to [0,1]. A zero vector carries
// no signal, so the pair is reported as not matched.
func compare(q, c []float32) (float64, bool) {
	if vector.IsZero(q) || vector.IsZero(c) {
		return 0, false
	}
	return clamp(vector.Cosine(q, c), 0, 1), true
}

// sortRanked orders by score desc, then modified desc, then id asc.
func sortRanked(rs []result.Ranked) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.RecordID < b.RecordID
	})
}

func enrich(rec *domrec.Record, now time.Time) result.Ranked {
	r := result.Ranked{
		RecordID:     rec.ID,
		Title:        rec.Title,
		Excerpt:      excerpt(rec.Body),
		URL:          rec.URL,
		Organization: rec.Attributes.Organization,
		MaxAmount:    rec.Attributes.MaxAmount,
		Deadline:     rec.Attributes.Deadline,
		Difficulty:   rec.Attributes.Difficulty,
		SuccessRate:  rec.Attributes.SuccessRate,
		Taxonomies:   rec.Taxonomies,
		ModifiedAt:   rec.ModifiedAt,
	}
	if days, ok := rec.DaysUntilDeadline(now); ok {
		r.DaysLeft = &days
	}
	return r
}

func excerpt(body string) string {
	text := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes]) + "…"
}

func intentNames(intents []query.Intent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = string(in)
	}
	return out
}
