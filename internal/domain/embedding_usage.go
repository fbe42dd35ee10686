package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects query embedding details for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the embedder chain writes to it; the handler reads it for response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // true if the external provider answered, even on a cache hit with 0 tokens
	Source      string
	Fallback    bool // external provider failed and the local synthesizer answered
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// SetSource records which embedder produced the query vector.
func (u *EmbeddingUsage) SetSource(source string, fallback bool) {
	if u != nil {
		u.Source = source
		u.Fallback = fallback
	}
}
