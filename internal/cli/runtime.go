package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"nhp/config"
	"nhp/internal/adapter/cache"
	"nhp/internal/adapter/chunker"
	"nhp/internal/adapter/embedding"
	"nhp/internal/adapter/label"
	"nhp/internal/adapter/llm"
	"nhp/internal/adapter/pdf"
	"nhp/internal/adapter/store"
	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/metrics"
	"nhp/internal/port"
	"nhp/internal/usecase"
)

// runtime holds the wired service and the resources that must be released after a command.
type runtime struct {
	service    *usecase.Service
	classifier *usecase.RetrievalClassifier
	store      *store.BoltKnowledgeStore
	queue      *usecase.IngestQueue
	metrics    *metrics.Metrics
	closers    []func() error
}

// openRuntime wires every component from cfg. With strict set, a knowledge base built by a
// different embedding model is an error.
func openRuntime(ctx context.Context, cfg *config.Config, dir string, strict bool) (*runtime, error) {
	log := logger.FromContext(ctx)
	rt := &runtime{metrics: metrics.New()}

	emb, err := buildEmbedder(ctx, cfg.Embedding, rt.metrics)
	if err != nil {
		return nil, err
	}

	// Create store
	dbPath := cfg.DBPath(dir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge base directory: %w", err)
	}
	st, err := store.NewBoltKnowledgeStore(dbPath, emb.ModelName(), emb.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	// Check the stored vectors came from the same embedding space
	compat, err := st.CheckCompatibility()
	if err != nil {
		rt.Close()
		return nil, err
	}
	if !compat.Compatible {
		if strict {
			rt.Close()
			return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingMismatch, compat.Reason)
		}
		log.Warn("knowledge base is incompatible", "reason", compat.Reason)
	}

	resultCache, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if c, ok := resultCache.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}

	var warnings []error
	reasoner, err := buildReasoner(ctx, cfg.Reasoning)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			rt.Close()
			return nil, err
		}
		log.Warn("reasoning disabled", "error", err)
		warnings = append(warnings, err)
	}

	extractor := buildExtractor(cfg.Extract, rt.metrics)

	state := usecase.NewKnowledgeBaseState()
	ingestor := usecase.NewMonographIngestor(st, emb, chunker.NewWordChunker(cfg.Ingest.ChunkWords, cfg.Ingest.Overlap))
	rt.queue = usecase.NewIngestQueue(cfg.Ingest.QueueSize, extractor, ingestor, st, state, rt.metrics)

	rt.classifier = usecase.NewRetrievalClassifier(emb, st, reasoner, resultCache, rt.metrics, usecase.ClassifierConfig{
		TopK:               cfg.Retrieve.TopK,
		MinSimilarity:      cfg.Retrieve.MinSimilarity,
		ContextTokens:      cfg.Retrieve.ContextTokens,
		FallbackConfidence: cfg.Classify.FallbackConfidence,
		MaxAttempts:        cfg.Reasoning.MaxAttempts,
		Timeout:            cfg.Reasoning.Timeout,
	})
	analyzer := usecase.NewAnalyzeUseCase(
		extractor,
		label.NewExtractor(cfg.Extract.SingleIngredientFallback),
		rt.classifier,
		usecase.NewResultAggregator(cfg.Classify.HighConfidence),
		cfg.Analyze.Concurrency,
		cfg.Classify.Concurrency,
	)

	rt.service = usecase.NewService(st, rt.queue, state, analyzer, resultCache,
		usecase.WithConfigWarnings(warnings...),
		usecase.WithRequireKnowledgeBase(cfg.Analyze.RequireKnowledgeBase),
	)
	rt.queue.Start(ctx)

	if cfg.Metrics.Addr != "" {
		rt.serveMetrics(ctx, cfg.Metrics.Addr)
	}

	return rt, nil
}

// Close stops the ingestion worker and releases resources in reverse order.
func (rt *runtime) Close() {
	if rt.queue != nil {
		rt.queue.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *runtime) serveMetrics(ctx context.Context, addr string) {
	log := logger.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)

	rt.closers = append(rt.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func buildEmbedder(ctx context.Context, cfg config.EmbeddingConfig, m *metrics.Metrics) (port.Embedder, error) {
	var inner port.Embedder
	opts := embedding.Options{
		APIKey:    cfg.APIKey(),
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.Timeout,
	}

	switch cfg.Provider {
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		inner = e
	case "ollama":
		inner = embedding.NewOllamaEmbedder(opts)
	case "gemini":
		e, err := embedding.NewGeminiEmbedder(ctx, opts.APIKey, cfg.Model, cfg.Dimension, cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		inner = e
	default:
		inner = embedding.NewHashEmbedder(cfg.Dimension)
	}

	retrying := embedding.NewRetryingEmbedder(inner, cfg.MaxAttempts, cfg.Timeout, m)
	if cfg.CacheSize <= 0 {
		return retrying, nil
	}
	cached, err := embedding.NewCachedEmbedder(retrying, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}

// buildReasoner returns a nil reasoner and a ConfigurationError when no credential is set.
func buildReasoner(ctx context.Context, cfg config.ReasoningConfig) (port.Reasoner, error) {
	if cfg.Provider == "none" {
		return nil, nil
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, &domain.ConfigurationError{
			Setting: cfg.APIKeyEnv,
			Message: "not set; medicinal ingredients will default to Class 3 for manual review",
		}
	}

	switch cfg.Provider {
	case "openai":
		r, err := llm.NewOpenAIReasoner(llm.Options{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create reasoner: %w", err)
		}
		return r, nil
	default:
		r, err := llm.NewGeminiReasoner(ctx, apiKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("failed to create reasoner: %w", err)
		}
		return r, nil
	}
}

func buildCache(ctx context.Context, cfg config.CacheConfig) (port.ClassificationCache, error) {
	switch cfg.Backend {
	case "redis":
		client, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &closingCache{RedisCache: cache.NewRedisCache(client, cfg.KeyPrefix, cfg.TTL), close: client.Close}, nil
	case "memory":
		if cfg.Size > 0 {
			return cache.NewMemoryCache(cfg.Size, cfg.TTL), nil
		}
	}
	return cache.Nop{}, nil
}

// closingCache ties the redis client lifetime to the cache.
type closingCache struct {
	*cache.RedisCache
	close func() error
}

func (c *closingCache) Close() error { return c.close() }

func buildExtractor(cfg config.ExtractConfig, m *metrics.Metrics) *pdf.Extractor {
	opts := []pdf.Option{pdf.WithTimeout(cfg.Timeout)}
	if cfg.OCREnabled {
		runner := pdf.ExecRunner{}
		opts = append(opts, pdf.WithOCR(
			pdf.NewPdftoppm(runner, cfg.PdftoppmPath, cfg.OCRDPI),
			pdf.NewTesseract(runner, cfg.TesseractPath, cfg.OCRLang, m),
		))
	}
	return pdf.NewExtractor(cfg.MinPageChars, opts...)
}
