package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedding sources. Vectors are only comparable when their sources match.
const (
	// SourceLocal marks vectors produced by the TF-IDF synthesizer.
	SourceLocal = "local"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector, its provenance and token usage
// through the decorator chain.
type EmbeddingResult struct {
	Embedding []float32
	// Source is SourceLocal or "external:<model>".
	Source string
	// VocabularyVersion is set for local vectors only.
	VocabularyVersion uint64
	PromptTokens      int
	TotalTokens       int
}

const externalPrefix = "external:"

// ExternalSource returns the source tag for a provider model.
func ExternalSource(model string) string {
	return externalPrefix + model
}

// ModelOf returns the provider model of an external source, or "" for local.
func ModelOf(source string) string {
	model, ok := strings.CutPrefix(source, externalPrefix)
	if !ok {
		return ""
	}
	return model
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
