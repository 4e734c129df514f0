package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chunky/internal/answer"
	"chunky/internal/chunker"
	"chunky/internal/config"
	"chunky/internal/domain"
	"chunky/internal/embedding"
	"chunky/internal/embedding/openai"
	"chunky/internal/embedding/tfidf"
	"chunky/internal/loader"
	"chunky/internal/logging"
	"chunky/internal/ranking"
	"chunky/internal/service"
	"chunky/internal/store"
	"chunky/internal/summarizer"
	"chunky/internal/vectorstore"
	"chunky/internal/vectorstore/memory"
	"chunky/internal/vectorstore/qdrant"
)

// app owns every component built from the configuration.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	store  *store.Store
	loader *loader.Loader
	svc    *service.RAGService
}

func loadConfig(opts *globalOptions) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.verbose {
		cfg.Logging.Debug = true
	}
	if opts.topK > 0 {
		cfg.Ranking.TopK = opts.topK
	}
	if len(opts.files) > 0 || len(opts.topics) > 0 {
		cfg.Source.Files = opts.files
		cfg.Source.Topics = opts.topics
	}
	return cfg, nil
}

func openStore(cfg *config.AppConfig) (*store.Store, error) {
	if !cfg.Storage.EnabledOrDefault() {
		return nil, nil
	}
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// newApp assembles the pipeline. withAnswerer=false skips the chat model so
// commands that never answer do not need its credentials.
func newApp(opts *globalOptions, withAnswerer bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Debug, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.build(withAnswerer); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(withAnswerer bool) error {
	cfg := a.cfg

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "paragraph":
		ch = chunker.NewParagraphChunker(cfg.Chunker.ChunkSize)
	case "sentence":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		return fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var builder vectorstore.Builder
	switch cfg.VectorStore.Type {
	case "memory":
		builder = memory.NewBuilder()
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return errors.New("qdrant config missing")
		}
		builder = qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	default:
		return fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	booster, err := ranking.BoosterByName(cfg.Ranking.Booster)
	if err != nil {
		return err
	}

	var ans domain.Answerer = answer.Disabled{}
	if withAnswerer && cfg.Answerer.Type == "openai" {
		o := cfg.Answerer.OpenAI
		if o == nil {
			return errors.New("openai answerer config missing")
		}
		client, err := answer.NewOpenAI(answer.Config{
			BaseURL:     o.BaseURL,
			APIKeyEnv:   o.APIKeyEnv,
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("openai answerer init failed: %w", err)
		}
		ans = client
	}

	var sum domain.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}

	a.store, err = openStore(cfg)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Chunker:    ch,
		Embedder:   emb,
		Builder:    builder,
		Ranker:     ranking.NewRanker(booster, a.logger),
		Answerer:   ans,
		Summarizer: sum,
		Logger:     a.logger,
	}
	if a.store != nil {
		deps.Store = a.store
	}
	a.svc = service.NewRAGService(deps, service.Options{
		Lowercase:           cfg.Preprocess.LowercaseOrDefault(),
		OnDegenerate:        service.DegeneratePolicy(cfg.Index.OnDegenerate),
		TopK:                cfg.Ranking.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		LexicalFallback:     cfg.Index.LexicalFallback,
	})

	a.loader = loader.New(loader.Config{
		Language:       cfg.Source.Language,
		UserAgent:      cfg.Source.UserAgent,
		WikipediaCache: cfg.Source.WikipediaCache,
		Timeout:        time.Duration(cfg.Source.TimeoutSecs) * time.Second,
	}, a.logger)
	return nil
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf":
		emb = tfidf.NewEmbedder()
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			BatchSize: o.BatchSize,
			Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
	return embedding.NewCached(emb, cfg.Embedder.QueryCacheSize), nil
}

// ingest loads the configured sources into the service.
func (a *app) ingest(ctx context.Context) (service.IngestReport, error) {
	src := loader.Sources{Topics: a.cfg.Source.Topics, Files: a.cfg.Source.Files}
	if len(src.Topics) == 0 && len(src.Files) == 0 {
		return service.IngestReport{}, fmt.Errorf("%w: configure source.topics or source.files, or pass --topic/--file", service.ErrNoDocuments)
	}
	docs, err := a.loader.Load(ctx, src)
	if err != nil {
		return service.IngestReport{}, fmt.Errorf("load sources: %w", err)
	}
	report, err := a.svc.Ingest(ctx, docs)
	if err != nil {
		return report, fmt.Errorf("ingest failed: %w", err)
	}
	return report, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}
