package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
)

// slowEmbedder blocks until its context is done.
type slowEmbedder struct{ calls int }

func (s *slowEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	s.calls++
	<-ctx.Done()
	return domain.EmbeddingResult{}, fmt.Errorf("provider: %w", ctx.Err())
}

func localResult() domain.EmbeddingResult {
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}, Source: domain.SourceLocal, VocabularyVersion: 3}
}

func TestFallbackEmbedder_PrimarySuccessIsFitted(t *testing.T) {
	primary := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{3, 4},
		Source:    domain.ExternalSource("text-embedding-3-small"),
	}}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{Dimensions: 4}, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := f.Embed(ctx, "補助金")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 4 {
		t.Fatalf("expected 4 components, got %d", len(res.Embedding))
	}
	if math.Abs(vector.Norm(res.Embedding)-1) > 1e-6 {
		t.Errorf("expected unit norm, got %v", res.Embedding)
	}
	if res.Source != "external:text-embedding-3-small" {
		t.Errorf("source = %q", res.Source)
	}
	if local.calls != 0 {
		t.Errorf("local embedder must not be called, got %d", local.calls)
	}
	if usage.Fallback || usage.Source != res.Source {
		t.Errorf("usage = %+v", usage)
	}
}

func TestFallbackEmbedder_ErrorRetriesOnceThenFallsBack(t *testing.T) {
	primary := &mockEmbedder{err: fmt.Errorf("503: %w", domain.ErrEmbeddingProviderUnavailable)}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{MaxRetries: 5, Dimensions: 4}, zap.NewNop())

	before := testutil.ToFloat64(metrics.EmbeddingFallbackTotal.WithLabelValues(ReasonError))

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := f.Embed(ctx, "補助金")
	if err != nil {
		t.Fatalf("provider errors must not surface, got %v", err)
	}
	if res.Source != domain.SourceLocal {
		t.Errorf("source = %q, want local", res.Source)
	}
	if primary.calls != 2 {
		t.Errorf("expected 2 provider attempts (retry clamped to 1), got %d", primary.calls)
	}
	if !usage.Fallback {
		t.Error("expected usage to record the fallback")
	}
	after := testutil.ToFloat64(metrics.EmbeddingFallbackTotal.WithLabelValues(ReasonError))
	if after-before != 1 {
		t.Errorf("expected fallback counter +1, got %v", after-before)
	}
}

func TestFallbackEmbedder_NoRetry(t *testing.T) {
	primary := &mockEmbedder{err: errors.New("boom")}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{MaxRetries: 0}, zap.NewNop())

	if _, err := f.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("expected 1 provider attempt, got %d", primary.calls)
	}
}

func TestFallbackEmbedder_Timeout(t *testing.T) {
	primary := &slowEmbedder{}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{
		AttemptTimeout: 20 * time.Millisecond,
		MaxRetries:     1,
	}, zap.NewNop())

	before := testutil.ToFloat64(metrics.EmbeddingFallbackTotal.WithLabelValues(ReasonTimeout))

	start := time.Now()
	res, err := f.Embed(context.Background(), "締切")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != domain.SourceLocal {
		t.Errorf("source = %q, want local", res.Source)
	}
	if primary.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", primary.calls)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fallback took too long: %v", elapsed)
	}
	after := testutil.ToFloat64(metrics.EmbeddingFallbackTotal.WithLabelValues(ReasonTimeout))
	if after-before != 1 {
		t.Errorf("expected timeout counter +1, got %v", after-before)
	}
}

func TestFallbackEmbedder_QuotaSkipsRetry(t *testing.T) {
	primary := &mockEmbedder{err: fmt.Errorf("budget check: %w", domain.ErrEmbeddingQuotaExceeded)}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{MaxRetries: 1}, zap.NewNop())

	if _, err := f.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("expected no retry on quota, got %d calls", primary.calls)
	}
}

func TestFallbackEmbedder_EmptyProviderVector(t *testing.T) {
	primary := &mockEmbedder{result: domain.EmbeddingResult{Source: "external:m"}}
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{}, zap.NewNop())

	res, err := f.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != domain.SourceLocal {
		t.Errorf("expected local fallback for empty provider vector, got %q", res.Source)
	}
}

func TestFallbackEmbedder_NilPrimaryBypasses(t *testing.T) {
	local := &mockEmbedder{result: localResult()}
	f := NewFallbackEmbedder(nil, local, FallbackConfig{}, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := f.Embed(ctx, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VocabularyVersion != 3 || local.calls != 1 {
		t.Errorf("expected direct local call, got %+v (calls=%d)", res, local.calls)
	}
	if usage.Fallback {
		t.Error("bypass is not a fallback")
	}
	if err := f.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy without provider, got %v", err)
	}
}

func TestFallbackEmbedder_LocalErrorSurfaces(t *testing.T) {
	primary := &mockEmbedder{err: errors.New("down")}
	local := &mockEmbedder{err: errors.New("no vocabulary")}
	f := NewFallbackEmbedder(primary, local, FallbackConfig{}, zap.NewNop())

	if _, err := f.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected local error")
	}
}
