// Package indexing keeps stored record vectors in step with record changes.
package indexing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

// DefaultWorkers is the re-index pool size when none is configured.
const DefaultWorkers = 4

// Config configures the service.
type Config struct {
	Kind    string
	Workers int
}

// ReindexResult summarizes one full re-index.
type ReindexResult struct {
	Indexed           int           `json:"indexed"`
	Failed            int           `json:"failed"`
	VocabularyVersion uint64        `json:"vocabulary_version"`
	VocabularyTerms   int           `json:"vocabulary_terms"`
	Duration          time.Duration `json:"duration_ns"`
}

// Service is the embedding lifecycle hook.
type Service struct {
	vectors VectorWriter
	records RecordFinder
	vocab   Vocabulary
	embed   Embedder
	pool    *ants.Pool
	cfg     Config
	logger  *zap.Logger

	reindexing atomic.Bool
}

// New creates the service and its worker pool. Call Release when done.
func New(
	vectors VectorWriter,
	records RecordFinder,
	vocab Vocabulary,
	embed Embedder,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if cfg.Kind == "" {
		cfg.Kind = domain.DefaultVectorKind
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create reindex pool: %w", err)
	}
	return &Service{
		vectors: vectors,
		records: records,
		vocab:   vocab,
		embed:   embed,
		pool:    pool,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// OnPublishOrUpdate re-synthesizes and stores the vector of a published
// record. Any other status is handled as an unpublish.
func (s *Service) OnPublishOrUpdate(ctx context.Context, rec *domrec.Record) error {
	if !rec.IsPublished() {
		return s.OnUnpublishOrDelete(ctx, rec.ID)
	}
	return s.index(ctx, rec)
}

// OnUnpublishOrDelete removes every vector kind of the record.
func (s *Service) OnUnpublishOrDelete(ctx context.Context, recordID string) error {
	if err := s.vectors.DeleteByRecord(ctx, recordID); err != nil {
		return fmt.Errorf("delete vectors of %s: %w", recordID, err)
	}
	s.logger.Debug("Record vectors removed", zap.String("record_id", recordID))
	return nil
}

func (s *Service) index(ctx context.Context, rec *domrec.Record) error {
	text := rec.CanonicalText()
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed record %s: %w", rec.ID, err)
	}
	v := vector.Vector{
		RecordID:   rec.ID,
		Kind:       s.cfg.Kind,
		Components: res.Embedding,
		Metadata: vector.Metadata{
			Source:            res.Source,
			Model:             domain.ModelOf(res.Source),
			VocabularyVersion: res.VocabularyVersion,
			TextHash:          vector.HashText(text),
			Title:             rec.Title,
		},
	}
	if _, err := s.vectors.Upsert(ctx, v); err != nil {
		return fmt.Errorf("store vector of %s: %w", rec.ID, err)
	}
	return nil
}

// Reindex rebuilds the vocabulary, drops every stored vector and
// re-synthesizes the vector of every published record on the worker pool.
// Clearing first removes vectors orphaned by a failed delete hook.
// Per-record failures are logged and counted; a record store or vector
// store failure aborts. One re-index runs at a time.
func (s *Service) Reindex(ctx context.Context) (ReindexResult, error) {
	if !s.reindexing.CompareAndSwap(false, true) {
		return ReindexResult{}, fmt.Errorf("re-index already running: %w", domain.ErrConflict)
	}
	defer s.reindexing.Store(false)

	start := time.Now()

	s.vocab.Invalidate()
	vocab, err := s.vocab.Vocabulary(ctx)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("rebuild vocabulary: %w", err)
	}

	published, err := filter.NewMatch(filter.KeyStatus, domrec.StatusPublished)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("build status filter: %w", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{published}, nil, nil)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("build status filter: %w", err)
	}
	records, err := s.records.Find(ctx, expr, 0, domrec.SortModifiedDesc)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("list published records: %w", err)
	}
	if err := s.vectors.Clear(ctx); err != nil {
		return ReindexResult{}, fmt.Errorf("clear vectors: %w", err)
	}

	var (
		wg      sync.WaitGroup
		indexed atomic.Int64
		failed  atomic.Int64
	)
	for i := range records {
		rec := &records[i]
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if err := s.index(ctx, rec); err != nil {
				failed.Add(1)
				s.logger.Warn("Re-index of record failed", zap.String("record_id", rec.ID), zap.Error(err))
				return
			}
			indexed.Add(1)
		})
		if err != nil {
			wg.Done()
			failed.Add(1)
			s.logger.Warn("Re-index task rejected", zap.String("record_id", rec.ID), zap.Error(err))
		}
	}
	wg.Wait()

	res := ReindexResult{
		Indexed:           int(indexed.Load()),
		Failed:            int(failed.Load()),
		VocabularyVersion: vocab.Version(),
		VocabularyTerms:   vocab.Size(),
		Duration:          time.Since(start),
	}
	s.logger.Info("Re-index finished",
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", res.Failed),
		zap.Uint64("vocabulary_version", res.VocabularyVersion),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}
