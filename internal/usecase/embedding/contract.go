package embedding

import (
	"context"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
)

// VocabularySource provides the current vocabulary snapshot.
type VocabularySource interface {
	Vocabulary(ctx context.Context) (*vocabulary.Vocabulary, error)
}

// BudgetStore is the persistence interface for budget counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Clock returns the current time. Injected so tests control day rollover.
type Clock func() time.Time
