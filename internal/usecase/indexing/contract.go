package indexing

import (
	"context"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
)

// VectorWriter persists and removes record vectors.
type VectorWriter interface {
	Upsert(ctx context.Context, v vector.Vector) (vector.Vector, error)
	DeleteByRecord(ctx context.Context, recordID string, kinds ...string) error
	Clear(ctx context.Context) error
}

// RecordFinder lists records for a full re-index.
type RecordFinder interface {
	Find(ctx context.Context, expr filter.Expression, limit int, sort domrec.Sort) ([]domrec.Record, error)
}

// Vocabulary is the cached vocabulary that Reindex rebuilds.
type Vocabulary interface {
	Vocabulary(ctx context.Context) (*vocabulary.Vocabulary, error)
	Invalidate()
}

// Embedder vectorizes record text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
