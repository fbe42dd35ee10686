package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a user-correctable request problem (empty query, malformed filter).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrRecordStoreUnavailable signals that the record store could not be queried.
	ErrRecordStoreUnavailable = errors.New("record store unavailable")
	// ErrEmbeddingProviderUnavailable signals an external embedding provider failure.
	ErrEmbeddingProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrVectorStoreCorrupt signals a stored vector that cannot be used (length mismatch, NaN).
	ErrVectorStoreCorrupt = errors.New("vector store corrupt")
	// ErrConflict signals an operation that cannot run in the current state (re-index already running).
	ErrConflict = errors.New("conflict")
	// ErrVectorDimMismatch signals a vector whose length differs from its kind's dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// Search pipeline stages, recorded on StageError for diagnostics.
const (
	StageAnalyze     = "analyze"
	StageFilter      = "filter"
	StageRecordStore = "record_store"
	StageEmbedQuery  = "embed_query"
	StageScore       = "score"
)

// StageError records which pipeline stage produced an error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage that produced it.
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "unknown".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}

// InvalidInputf builds an ErrInvalidInput with a formatted detail.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
