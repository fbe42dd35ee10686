package chi

import (
	"time"

	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/result"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeRecordNotFound         ErrorCode = "record_not_found"
	ErrorCodeConflict               ErrorCode = "conflict"
	ErrorCodeRecordStoreUnavailable ErrorCode = "record_store_unavailable"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type rangeFilter struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

type filterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	Range *rangeFilter `json:"range,omitempty"`
}

type filterExpression struct {
	Must    []filterCondition `json:"must,omitempty"`
	Should  []filterCondition `json:"should,omitempty"`
	MustNot []filterCondition `json:"must_not,omitempty"`
}

type searchRequest struct {
	Query   string            `json:"query"`
	Filters *filterExpression `json:"filters,omitempty"`
	Limit   *int              `json:"limit,omitempty"`
}

type searchResponse struct {
	Count   int             `json:"count"`
	Results []result.Ranked `json:"results"`
}

type recordResponse struct {
	domrec.Record
	Created bool `json:"created,omitempty"`
}

type vectorResponse struct {
	RecordID          string    `json:"record_id"`
	Kind              string    `json:"kind"`
	Dimensions        int       `json:"dimensions"`
	Components        []float32 `json:"components"`
	Source            string    `json:"source"`
	VocabularyVersion uint64    `json:"vocabulary_version,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type reindexResponse struct {
	Indexed           int     `json:"indexed"`
	Failed            int     `json:"failed"`
	VocabularyVersion uint64  `json:"vocabulary_version"`
	VocabularyTerms   int     `json:"vocabulary_terms"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
