package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/db"
	"github.com/xxxsen/docqa/internal/embedcache"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/preprocess"
	"github.com/xxxsen/docqa/internal/rag"
	"github.com/xxxsen/docqa/internal/repo"
	"github.com/xxxsen/docqa/internal/retrieval"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	cacheRepo *repo.EmbeddingCacheRepo
	source    filestore.Store
	store     *vectorstore.Store
	retriever *retrieval.Retriever
	pipeline  *rag.Pipeline
	ingest    *ingest.Service
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.VectorStore.Type == vectorstore.BackendSQL || cfg.Embedding.Cache.DB
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	a := &app{cfg: cfg}
	if needsDatabase(cfg) {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn, cfg.Database.Driver); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		logger.Info("database ready", zap.String("driver", cfg.Database.Driver))
	}

	var cacheWraps []ai.EmbedderWrapper
	if cfg.Embedding.Cache.DB && a.db != nil {
		a.cacheRepo = repo.NewEmbeddingCacheRepo(a.db, cfg.Database.Driver)
		cacheWraps = append(cacheWraps, func(e ai.IEmbedder) ai.IEmbedder {
			return embedcache.WrapDB(e, a.cacheRepo)
		})
	}
	if cfg.Embedding.Cache.LRUSize > 0 {
		ttl := time.Duration(cfg.Embedding.Cache.LRUTTLSeconds) * time.Second
		cacheWraps = append(cacheWraps, func(e ai.IEmbedder) ai.IEmbedder {
			return embedcache.WrapLRU(e, cfg.Embedding.Cache.LRUSize, ttl)
		})
	}
	embedder := ai.ResolveEmbedder(ctx, cfg.Embedding, cacheWraps...)
	provider := ai.NewEmbeddingProvider(embedder)

	store, err := vectorstore.New(ctx, cfg.VectorStore, vectorstore.Deps{DB: a.db, Driver: cfg.Database.Driver})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	a.store = store

	if cfg.Source.Type != "" {
		source, err := filestore.New(cfg.Source)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init source store: %w", err)
		}
		a.source = source
	}

	a.retriever = retrieval.New(provider, store, retrieval.WithTopK(cfg.Retrieval.TopK))
	var pipelineOpts []rag.Option
	if gen := ai.ResolveGenerator(ctx, cfg.Generation); gen != nil {
		pipelineOpts = append(pipelineOpts, rag.WithGenerator(gen, time.Duration(cfg.Generation.Timeout)*time.Second))
	}
	a.pipeline = rag.New(a.retriever, pipelineOpts...)

	var cleanerOpts []preprocess.CleanerOption
	if cfg.Cleaner.StripHTML {
		cleanerOpts = append(cleanerOpts, preprocess.WithStripHTML())
	}
	if cfg.Cleaner.RemoveControl {
		cleanerOpts = append(cleanerOpts, preprocess.WithRemoveControl())
	}
	ingestOpts := []ingest.Option{
		ingest.WithChunking(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap(), cfg.Chunker.Separator),
		ingest.WithCleaner(preprocess.NewCleaner(cleanerOpts...)),
		ingest.WithMaxSize(cfg.MaxUploadSize),
	}
	if a.source != nil {
		ingestOpts = append(ingestOpts, ingest.WithSource(a.source))
	}
	a.ingest = ingest.NewService(provider, store, ingestOpts...)

	logger.Info("components ready",
		zap.String("vector_store", store.Name()),
		zap.String("embedding_model", provider.ModelName()),
		zap.Bool("generation", a.pipeline.HasChain()),
		zap.Bool("source", a.source != nil),
	)
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
