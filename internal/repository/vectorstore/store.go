// Package vectorstore keeps one embedding per (record id, kind) in an
// in-process index and writes every change through to the key-value backend.
//
// Search is brute-force cosine over every vector of a kind: O(n·D) per query.
// That is fine for a directory of a few thousand grants; a larger corpus
// needs an ANN index instead.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/db"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
)

const loadBatchSize = 500

// backend is the consumer interface for persistence (ISP).
type backend interface {
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) ([]string, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}

// Config configures the store.
type Config struct {
	KeyPrefix string
	// Dimensions fixes the length of every kind. Zero lets the first write
	// of each kind decide.
	Dimensions int
}

// Match is one search hit.
type Match struct {
	Vector     vector.Vector
	Similarity float64
}

type kindIndex struct {
	dim     int
	pos     map[string]int
	entries []*vector.Vector
}

// Store is safe for concurrent use. Readers share the lock; index updates
// are exclusive and last-writer-wins per key.
type Store struct {
	mu      sync.RWMutex
	kinds   map[string]*kindIndex
	backend backend
	cfg     Config
	clock   func() time.Time
	logger  *zap.Logger
}

// New creates a store. A nil backend keeps vectors in memory only.
func New(b backend, cfg Config, clock func() time.Time, logger *zap.Logger) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		kinds:   make(map[string]*kindIndex),
		backend: b,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

func (s *Store) prefix() string { return s.cfg.KeyPrefix + "vec:" }

func (s *Store) key(kind, recordID string) string {
	return s.prefix() + kind + ":" + recordID
}

// Upsert validates and stores v, replacing any previous vector for the same
// record and kind in place. It returns the stored copy. The backend write
// happens outside the lock; only the index swap is exclusive.
func (s *Store) Upsert(ctx context.Context, v vector.Vector) (vector.Vector, error) {
	if err := v.Validate(); err != nil {
		return vector.Vector{}, fmt.Errorf("upsert vector: %w", err)
	}

	now := s.clock().UTC()
	stored := v
	stored.Components = append([]float32(nil), v.Components...)
	stored.CreatedAt, stored.UpdatedAt = now, now

	s.mu.RLock()
	idx := s.kinds[v.Kind]
	err := s.checkDimensions(idx, &stored)
	if err == nil && idx != nil {
		if i, ok := idx.pos[v.RecordID]; ok {
			stored.CreatedAt = idx.entries[i].CreatedAt
		}
	}
	s.mu.RUnlock()
	if err != nil {
		return vector.Vector{}, err
	}

	if err := s.persist(ctx, &stored); err != nil {
		return vector.Vector{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The kind may have been created or cleared while persisting.
	idx = s.kinds[v.Kind]
	if err := s.checkDimensions(idx, &stored); err != nil {
		return vector.Vector{}, err
	}
	if idx == nil {
		idx = &kindIndex{dim: len(stored.Components), pos: make(map[string]int)}
		s.kinds[v.Kind] = idx
	}
	s.insert(idx, &stored)
	return stored, nil
}

func (s *Store) checkDimensions(idx *kindIndex, v *vector.Vector) error {
	if want := s.dimensionFor(idx); want > 0 && len(v.Components) != want {
		return fmt.Errorf("%s/%s has %d components, kind %q needs %d: %w",
			v.RecordID, v.Kind, len(v.Components), v.Kind, want, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (s *Store) dimensionFor(idx *kindIndex) int {
	if s.cfg.Dimensions > 0 {
		return s.cfg.Dimensions
	}
	if idx != nil && len(idx.entries) > 0 {
		return idx.dim
	}
	return 0
}

func (s *Store) insert(idx *kindIndex, v *vector.Vector) {
	if i, ok := idx.pos[v.RecordID]; ok {
		idx.entries[i] = v
		return
	}
	if len(idx.entries) == 0 {
		idx.dim = len(v.Components)
	}
	idx.pos[v.RecordID] = len(idx.entries)
	idx.entries = append(idx.entries, v)
	metrics.VectorStoreEntries.WithLabelValues(v.Kind).Set(float64(len(idx.entries)))
}

func (s *Store) persist(ctx context.Context, v *vector.Vector) error {
	if s.backend == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	key := s.key(v.Kind, v.RecordID)
	if err := s.backend.Set(ctx, key, data); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// Get returns a copy of the vector for a record and kind.
func (s *Store) Get(_ context.Context, recordID, kind string) (vector.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.kinds[kind]
	if idx == nil {
		return vector.Vector{}, fmt.Errorf("vector %s/%s: %w", recordID, kind, domain.ErrNotFound)
	}
	i, ok := idx.pos[recordID]
	if !ok {
		return vector.Vector{}, fmt.Errorf("vector %s/%s: %w", recordID, kind, domain.ErrNotFound)
	}
	out := *idx.entries[i]
	out.Components = append([]float32(nil), out.Components...)
	return out, nil
}

// Search ranks every vector of kind by cosine similarity to query, drops
// those below floor and returns at most limit matches (limit <= 0: all).
// Ties keep insertion order. Vectors whose length differs from query are
// skipped and counted as corrupt.
func (s *Store) Search(_ context.Context, query []float32, kind string, limit int, floor float64) ([]Match, error) {
	if len(query) == 0 {
		return nil, domain.InvalidInputf("query vector is empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.kinds[kind]
	if idx == nil {
		return []Match{}, nil
	}

	out := make([]Match, 0, len(idx.entries))
	for _, v := range idx.entries {
		if len(v.Components) != len(query) {
			metrics.VectorStoreCorruptTotal.WithLabelValues(kind).Inc()
			continue
		}
		sim := vector.Cosine(query, v.Components)
		if sim < floor {
			continue
		}
		out = append(out, Match{Vector: *v, Similarity: sim})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteByRecord removes the record's vectors of the given kinds, or of every
// kind when none are given. Missing entries are not an error.
func (s *Store) DeleteByRecord(ctx context.Context, recordID string, kinds ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(kinds) == 0 {
		for k := range s.kinds {
			kinds = append(kinds, k)
		}
	}

	for _, kind := range kinds {
		if s.backend != nil {
			if err := s.backend.Del(ctx, s.key(kind, recordID)); err != nil {
				return fmt.Errorf("delete vector %s/%s: %w", recordID, kind, err)
			}
		}
		s.remove(kind, recordID)
	}
	return nil
}

func (s *Store) remove(kind, recordID string) {
	idx := s.kinds[kind]
	if idx == nil {
		return
	}
	i, ok := idx.pos[recordID]
	if !ok {
		return
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
	delete(idx.pos, recordID)
	for j := i; j < len(idx.entries); j++ {
		idx.pos[idx.entries[j].RecordID] = j
	}
	metrics.VectorStoreEntries.WithLabelValues(kind).Set(float64(len(idx.entries)))
}

// Clear removes every vector from memory and the backend.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		keys, err := s.backend.Scan(ctx, s.prefix())
		if err != nil {
			return fmt.Errorf("scan vectors: %w", err)
		}
		for _, key := range keys {
			if err := s.backend.Del(ctx, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
	}
	for kind := range s.kinds {
		metrics.VectorStoreEntries.WithLabelValues(kind).Set(0)
	}
	s.kinds = make(map[string]*kindIndex)
	return nil
}

// Count returns the number of vectors of kind.
func (s *Store) Count(kind string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.kinds[kind]; idx != nil {
		return len(idx.entries)
	}
	return 0
}

// Load replaces the in-memory index with the backend contents. Entries that
// fail to decode or validate are skipped and counted as corrupt. Insertion
// order is restored from CreatedAt.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.backend == nil {
		return 0, nil
	}

	keys, err := s.backend.Scan(ctx, s.prefix())
	if err != nil {
		return 0, fmt.Errorf("scan vectors: %w", err)
	}

	loaded := make([]*vector.Vector, 0, len(keys))
	for start := 0; start < len(keys); start += loadBatchSize {
		batch := keys[start:min(start+loadBatchSize, len(keys))]
		values, err := s.backend.MGet(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("read vectors: %w", err)
		}
		for i, raw := range values {
			if raw == nil {
				continue
			}
			v, err := decode(raw)
			if err != nil {
				metrics.VectorStoreCorruptTotal.WithLabelValues(kindFromKey(batch[i], s.prefix())).Inc()
				s.logger.Warn("Skipping corrupt stored vector", zap.String("key", batch[i]), zap.Error(err))
				continue
			}
			loaded = append(loaded, v)
		}
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		if !loaded[i].CreatedAt.Equal(loaded[j].CreatedAt) {
			return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
		}
		return loaded[i].RecordID < loaded[j].RecordID
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.kinds = make(map[string]*kindIndex)
	count := 0
	for _, v := range loaded {
		idx := s.kinds[v.Kind]
		if idx == nil {
			idx = &kindIndex{dim: len(v.Components), pos: make(map[string]int)}
			s.kinds[v.Kind] = idx
		}
		if want := s.dimensionFor(idx); want > 0 && len(v.Components) != want {
			metrics.VectorStoreCorruptTotal.WithLabelValues(v.Kind).Inc()
			s.logger.Warn("Skipping stored vector with wrong dimensions",
				zap.String("record_id", v.RecordID),
				zap.String("kind", v.Kind),
				zap.Int("dimensions", len(v.Components)),
				zap.Int("expected", want),
			)
			continue
		}
		s.insert(idx, v)
		count++
	}

	s.logger.Info("Vector store loaded", zap.Int("vectors", count), zap.Int("keys", len(keys)))
	return count, nil
}

func decode(raw []byte) (*vector.Vector, error) {
	var v vector.Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode: %w: %w", domain.ErrVectorStoreCorrupt, err)
	}
	if err := v.Validate(); err != nil {
		if errors.Is(err, domain.ErrVectorStoreCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreCorrupt, err)
	}
	return &v, nil
}

func kindFromKey(key, prefix string) string {
	rest := strings.TrimPrefix(key, prefix)
	if i := strings.IndexByte(rest, ':'); i > 0 {
		return rest[:i]
	}
	return "unknown"
}

var _ backend = (db.Store)(nil)
