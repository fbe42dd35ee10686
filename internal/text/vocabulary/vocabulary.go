// Package vocabulary builds and caches the bounded term→index mapping used by
// the local embedding synthesizer.
package vocabulary

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/tokenize"
)

// CorpusSource yields the most recent published records, newest first.
type CorpusSource interface {
	RecentPublished(ctx context.Context, limit int) ([]record.Record, error)
}

// Clock abstracts time for TTL checks.
type Clock func() time.Time

// Vocabulary is an immutable snapshot. Seed terms occupy indices 0..SeedCount()-1.
type Vocabulary struct {
	terms     map[string]int
	ordered   []string
	seedCount int
	docFreq   []int
	totalDocs int
	version   uint64
	builtAt   time.Time
}

// Index returns the dimension assigned to term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.terms[term]
	return i, ok
}

// Size returns the number of terms.
func (v *Vocabulary) Size() int { return len(v.ordered) }

// SeedCount returns how many leading indices belong to seed terms.
func (v *Vocabulary) SeedCount() int { return v.seedCount }

// Term returns the term at index i.
func (v *Vocabulary) Term(i int) string { return v.ordered[i] }

// DocFreq returns how many sampled documents contain the term at index i.
func (v *Vocabulary) DocFreq(i int) int { return v.docFreq[i] }

// TotalDocs returns the number of sampled documents.
func (v *Vocabulary) TotalDocs() int { return v.totalDocs }

// Version fingerprints the snapshot content (term order, document
// frequencies, sample size). Equal versions synthesize identical vectors,
// across builders and process restarts.
func (v *Vocabulary) Version() uint64 { return v.version }

// BuiltAt returns when the snapshot was built.
func (v *Vocabulary) BuiltAt() time.Time { return v.builtAt }

// Config holds builder tuning.
type Config struct {
	Seeds      []string
	MaxTerms   int
	SampleSize int
	TTL        time.Duration
}

// Builder owns the cached vocabulary. Concurrent rebuilds are allowed; the
// last finished build wins.
type Builder struct {
	source  CorpusSource
	cfg     Config
	clock   Clock
	logger  *zap.Logger
	cached  atomic.Pointer[Vocabulary]
}

// NewBuilder creates a vocabulary builder. Zero config values take defaults.
func NewBuilder(source CorpusSource, cfg Config, clock Clock, logger *zap.Logger) *Builder {
	if cfg.Seeds == nil {
		cfg.Seeds = DefaultSeeds
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = domain.DefaultVocabularySize
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = domain.DefaultVocabularySample
	}
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultVocabularyTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Builder{source: source, cfg: cfg, clock: clock, logger: logger}
}

// Vocabulary returns the cached snapshot, rebuilding it when missing or expired.
func (b *Builder) Vocabulary(ctx context.Context) (*Vocabulary, error) {
	if v := b.cached.Load(); v != nil && b.clock().Before(v.builtAt.Add(b.cfg.TTL)) {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context error is returned as is
	}

	v := b.build(ctx)
	b.cached.Store(v)
	return v, nil
}

// Invalidate drops the cached snapshot so the next call rebuilds.
func (b *Builder) Invalidate() {
	b.cached.Store(nil)
}

func (b *Builder) build(ctx context.Context) *Vocabulary {
	v := &Vocabulary{
		terms:   make(map[string]int, b.cfg.MaxTerms),
		builtAt: b.clock(),
	}

	for _, seed := range b.cfg.Seeds {
		if len(v.ordered) >= b.cfg.MaxTerms {
			break
		}
		v.add(tokenize.Normalize(seed))
	}
	v.seedCount = len(v.ordered)

	status := "ok"
	var docs [][]string
	if b.source != nil {
		records, err := b.source.RecentPublished(ctx, b.cfg.SampleSize)
		if err != nil {
			status = "degraded"
			b.logger.Warn("Vocabulary corpus scan failed, using seed terms only", zap.Error(err))
		}
		docs = make([][]string, 0, len(records))
		for i := range records {
			docs = append(docs, tokenize.TokenizeUnique(records[i].Title+"\n"+records[i].Body))
		}
	}

	// Pass 1: extend in document order until the bound is reached.
	for _, tokens := range docs {
		for _, tok := range tokens {
			if len(v.ordered) >= b.cfg.MaxTerms {
				break
			}
			if tokenize.IsStopWord(tok) {
				continue
			}
			v.add(tok)
		}
	}

	// Pass 2: document frequencies over the whole sample.
	v.docFreq = make([]int, len(v.ordered))
	for _, tokens := range docs {
		for _, tok := range tokens {
			if i, ok := v.terms[tok]; ok {
				v.docFreq[i]++
			}
		}
	}
	v.totalDocs = len(docs)
	v.version = v.fingerprint()

	metrics.VocabularyBuildsTotal.WithLabelValues(status).Inc()
	metrics.VocabularyTerms.Set(float64(len(v.ordered)))

	b.logger.Info("Vocabulary built",
		zap.Uint64("version", v.version),
		zap.Int("terms", len(v.ordered)),
		zap.Int("seed_terms", v.seedCount),
		zap.Int("documents", v.totalDocs),
	)
	return v
}

// fingerprint is FNV-64a over the ordered terms, their document
// frequencies and the sample size. Zero is reserved for "no vocabulary".
func (v *Vocabulary) fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i, term := range v.ordered {
		_, _ = h.Write([]byte(term))
		binary.BigEndian.PutUint64(buf[:], uint64(v.docFreq[i]))
		_, _ = h.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(v.totalDocs))
	_, _ = h.Write(buf[:])
	if sum := h.Sum64(); sum != 0 {
		return sum
	}
	return 1
}

func (v *Vocabulary) add(term string) {
	if term == "" {
		return
	}
	if _, ok := v.terms[term]; ok {
		return
	}
	v.terms[term] = len(v.ordered)
	v.ordered = append(v.ordered, term)
}

// Terms returns the number of corpus-derived terms in the current snapshot.
func (b *Builder) Terms(ctx context.Context) (int, error) {
	v, err := b.Vocabulary(ctx)
	if err != nil {
		return 0, err
	}
	return v.Size() - v.SeedCount(), nil
}
