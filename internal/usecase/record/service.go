// Package record handles record change events: it stores the record and
// fires the embedding lifecycle hook.
package record

import (
	"context"
	"fmt"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

// Service handles record CRUD with vector refresh.
type Service struct {
	repo    Repository
	hook    LifecycleHook
	vectors VectorReader
	kind    string
}

// New creates a record service. kind is the vector kind served when a
// lookup names none; empty means domain.DefaultVectorKind.
func New(repo Repository, hook LifecycleHook, vectors VectorReader, kind string) *Service {
	if kind == "" {
		kind = domain.DefaultVectorKind
	}
	return &Service{repo: repo, hook: hook, vectors: vectors, kind: kind}
}

// Upsert stores the record and refreshes its vector.
// Returns true if the record was created, false if updated.
// A hook failure is returned after the record is stored; retrying is safe.
func (s *Service) Upsert(ctx context.Context, rec *domrec.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err //nolint:wrapcheck // already a domain error
	}

	created, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("upsert record: %w", err)
	}

	if err := s.hook.OnPublishOrUpdate(ctx, rec); err != nil {
		return created, fmt.Errorf("refresh vector: %w", err)
	}
	return created, nil
}

// Get retrieves a record by id.
func (s *Service) Get(ctx context.Context, id string) (domrec.Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Delete removes a record and all of its vectors.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if err := s.hook.OnUnpublishOrDelete(ctx, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Vector returns the stored vector of a record.
func (s *Service) Vector(ctx context.Context, id, kind string) (vector.Vector, error) {
	if kind == "" {
		kind = s.kind
	}
	v, err := s.vectors.Get(ctx, id, kind)
	if err != nil {
		return vector.Vector{}, fmt.Errorf("get vector: %w", err)
	}
	return v, nil
}
