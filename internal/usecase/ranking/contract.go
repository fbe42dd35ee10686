package ranking

import (
	"context"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

// RecordFinder queries the record store for candidates.
type RecordFinder interface {
	Find(ctx context.Context, expr filter.Expression, limit int, sort domrec.Sort) ([]domrec.Record, error)
}

// VectorStore reads stored candidate vectors and accepts write-through upserts.
type VectorStore interface {
	Get(ctx context.Context, recordID, kind string) (vector.Vector, error)
	Upsert(ctx context.Context, v vector.Vector) (vector.Vector, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
