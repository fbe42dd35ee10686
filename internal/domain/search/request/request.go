package request

import (
	"strings"
	"unicode/utf8"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in runes.
	MaxQueryLength = 512
	DefaultLimit   = 20
	MaxLimit       = 50
)

// Request is a validated search query.
type Request struct {
	query   string
	filters filter.Expression
	limit   int
}

// New validates and normalizes search parameters. Invalid input is reported
// as domain.ErrInvalidInput before any store is touched.
func New(query string, filters filter.Expression, limit int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, domain.InvalidInputf("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, domain.InvalidInputf("query too long (max %d chars)", MaxQueryLength)
	}
	if err := filters.Validate(); err != nil {
		return Request{}, domain.InvalidInputf("%s", err.Error())
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{query: query, filters: filters, limit: limit}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Filters returns the caller-supplied structural filter.
func (r *Request) Filters() filter.Expression { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }
