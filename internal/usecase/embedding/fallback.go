package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
)

// Fallback defaults.
const (
	DefaultAttemptTimeout = 3 * time.Second
	DefaultMaxRetries     = 1
)

// Fallback reasons reported in grantsearch_embedding_fallback_total.
const (
	ReasonTimeout = "timeout"
	ReasonQuota   = "quota"
	ReasonError   = "error"
)

// FallbackConfig configures the external-then-local embedder.
type FallbackConfig struct {
	// AttemptTimeout bounds each provider call.
	AttemptTimeout time.Duration
	// MaxRetries is 0 or 1; larger values are clamped.
	MaxRetries int
	// Dimensions every provider vector is fitted to.
	Dimensions int
}

// FallbackEmbedder asks the external provider first and answers with the
// local synthesizer when the provider fails, times out or is over budget.
// Provider errors never reach the caller.
type FallbackEmbedder struct {
	primary  domain.Embedder
	fallback domain.Embedder
	cfg      FallbackConfig
	logger   *zap.Logger
}

// NewFallbackEmbedder creates the decorator. A nil primary means no provider
// is configured and every call goes straight to fallback.
func NewFallbackEmbedder(
	primary, fallback domain.Embedder, cfg FallbackConfig, logger *zap.Logger,
) *FallbackEmbedder {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	cfg.MaxRetries = min(max(cfg.MaxRetries, 0), 1)
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = domain.DefaultDimensions
	}
	return &FallbackEmbedder{primary: primary, fallback: fallback, cfg: cfg, logger: logger}
}

// Embed returns the provider vector fitted to the configured dimensions, or
// the local vector.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if f.primary == nil {
		return f.local(ctx, text, false)
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		res, err := f.attempt(ctx, text)
		if err == nil {
			res.Embedding = vector.NormalizeL2(vector.Fit(res.Embedding, f.cfg.Dimensions))
			domain.UsageFromContext(ctx).SetSource(res.Source, false)
			return res, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
			break
		}
	}

	reason := fallbackReason(lastErr)
	metrics.EmbeddingFallbackTotal.WithLabelValues(reason).Inc()
	f.logger.Warn("External embedding failed, using local synthesizer",
		zap.String("reason", reason),
		zap.Error(lastErr),
	)
	return f.local(ctx, text, true)
}

func (f *FallbackEmbedder) attempt(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	res, err := f.primary.Embed(attemptCtx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // classified by fallbackReason
	}
	if len(res.Embedding) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderUnavailable)
	}
	return res, nil
}

func (f *FallbackEmbedder) local(ctx context.Context, text string, fallback bool) (domain.EmbeddingResult, error) {
	res, err := f.fallback.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("local embed: %w", err)
	}
	domain.UsageFromContext(ctx).SetSource(res.Source, fallback)
	return res, nil
}

// HealthCheck reports the provider's health; the local path needs none.
func (f *FallbackEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := f.primary.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return ReasonQuota
	default:
		return ReasonError
	}
}
