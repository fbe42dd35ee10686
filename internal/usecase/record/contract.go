package record

import (
	"context"

	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

// Repository defines the storage contract for records.
type Repository interface {
	Upsert(ctx context.Context, rec *domrec.Record) (created bool, err error)
	Get(ctx context.Context, id string) (domrec.Record, error)
	Delete(ctx context.Context, id string) error
}

// LifecycleHook refreshes stored vectors when a record changes.
type LifecycleHook interface {
	OnPublishOrUpdate(ctx context.Context, rec *domrec.Record) error
	OnUnpublishOrDelete(ctx context.Context, recordID string) error
}

// VectorReader reads stored vectors.
type VectorReader interface {
	Get(ctx context.Context, recordID, kind string) (vector.Vector, error)
}
