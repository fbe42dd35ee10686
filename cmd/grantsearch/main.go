package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/config"
	"github.com/abckeishi-spec/keishi9-sub000/internal/db"
	dbBadger "github.com/abckeishi-spec/keishi9-sub000/internal/db/badger"
	dbRedis "github.com/abckeishi-spec/keishi9-sub000/internal/db/redis"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	logpkg "github.com/abckeishi-spec/keishi9-sub000/internal/logger"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
	budgetrepo "github.com/abckeishi-spec/keishi9-sub000/internal/repository/budget"
	"github.com/abckeishi-spec/keishi9-sub000/internal/repository/embcache"
	recordrepo "github.com/abckeishi-spec/keishi9-sub000/internal/repository/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/repository/vectorstore"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
	chiTransport "github.com/abckeishi-spec/keishi9-sub000/internal/transport/chi"
	openaiEmb "github.com/abckeishi-spec/keishi9-sub000/internal/transport/openai"
	embeddinguc "github.com/abckeishi-spec/keishi9-sub000/internal/usecase/embedding"
	healthuc "github.com/abckeishi-spec/keishi9-sub000/internal/usecase/health"
	"github.com/abckeishi-spec/keishi9-sub000/internal/usecase/indexing"
	"github.com/abckeishi-spec/keishi9-sub000/internal/usecase/ranking"
	recorduc "github.com/abckeishi-spec/keishi9-sub000/internal/usecase/record"
	usageuc "github.com/abckeishi-spec/keishi9-sub000/internal/usecase/usage"
	"github.com/abckeishi-spec/keishi9-sub000/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting grant search API server",
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("embedding_provider", cfg.Embedding.Enabled()),
	)

	store, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	records := recordrepo.New(store, cfg.Storage.KeyPrefix, time.Now, logger)

	vocab := vocabulary.NewBuilder(records, vocabulary.Config{
		Seeds:      cfg.Vocabulary.Seeds,
		MaxTerms:   cfg.Vocabulary.MaxTerms,
		SampleSize: cfg.Vocabulary.SampleSize,
		TTL:        cfg.Vocabulary.TTL(),
	}, time.Now, logger)
	synth := embeddinguc.NewSynthesizer(vocab, cfg.Embedding.Dimensions)

	vectors := vectorstore.New(store, vectorstore.Config{
		KeyPrefix:  cfg.Storage.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
	}, time.Now, logger)
	loaded, err := vectors.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load vector store", zap.Error(err))
	}
	logger.Info("Vector store loaded", zap.Int("vectors", loaded))

	// Pass nil interfaces (not typed nil pointers) when no budget is configured.
	var budgetChecker embeddinguc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget := buildBudget(ctx, cfg, store, logger); budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}
	docEmbedder := buildEmbedder(cfg, cfg.Embedding.DocumentInstruction, store, budgetChecker, synth, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, store, budgetChecker, synth, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	indexer, err := indexing.New(vectors, records, vocab, docEmbedder, indexing.Config{
		Kind:    cfg.Ranking.VectorKind,
		Workers: cfg.Indexing.Workers,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create indexer", zap.Error(err))
	}
	defer indexer.Release()

	searchSvc := ranking.New(records, vectors, queryEmbedder, synth, ranking.Config{
		PageSize: cfg.Ranking.PageSize,
		Kind:     cfg.Ranking.VectorKind,
	}, time.Now, logger)
	recordSvc := recorduc.New(records, indexer, vectors, cfg.Ranking.VectorKind)

	var embeddingHealth healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		embeddingHealth = newEmbeddingHealthChecker(docEmbedder)
	}
	healthSvc := healthuc.New(store, embeddingHealth, vocab)
	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Provider, time.Now)

	server := chiTransport.NewServer(searchSvc, recordSvc, indexer, usageSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.Router(server, cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func openStore(cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return s, nil
	case config.DriverBadger:
		s, err := dbBadger.Open(dbBadger.Config{Path: cfg.Path, InMemory: cfg.InMemory}, logger)
		if err != nil {
			return nil, fmt.Errorf("badger: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildBudget returns nil when no limit is configured.
func buildBudget(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) *embeddinguc.BudgetTracker {
	b := cfg.Embedding.Budget
	if !cfg.Embedding.Enabled() || (b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0) {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if b.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	tracker := embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
		Provider:     cfg.Embedding.Provider,
		KeyPrefix:    cfg.Storage.KeyPrefix,
		DailyLimit:   b.DailyTokenLimit,
		MonthlyLimit: b.MonthlyTokenLimit,
		Action:       action,
	}, time.Now, logger)
	return tracker.WithStore(ctx, budgetrepo.New(store, 0, 0))
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Cached -> Instrumented -> Instruction -> Fallback(local synthesizer).
// Without an api key the chain is the synthesizer behind the fallback decorator.
func buildEmbedder(
	cfg config.Config,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	local domain.Embedder,
	logger *zap.Logger,
) domain.Embedder {
	var primary domain.Embedder
	if cfg.Embedding.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Timeout:    cfg.Embedding.Timeout(),
			Logger:     logger,
		})

		primary = embcache.New(base, store, embcache.Config{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)

		primary = embeddinguc.NewInstrumentedEmbedder(
			primary, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
		)

		// Instruction prefix (outermost on the provider side; cache key includes instruction)
		if instruction != "" {
			primary = domain.NewInstructionEmbedder(primary, instruction)
		}
	}

	return embeddinguc.NewFallbackEmbedder(primary, local, embeddinguc.FallbackConfig{
		AttemptTimeout: cfg.Embedding.Timeout(),
		MaxRetries:     cfg.Embedding.MaxRetries,
		Dimensions:     cfg.Embedding.Dimensions,
	}, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
