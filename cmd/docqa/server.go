package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/job"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/schedule"
)

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logger := logutil.GetLogger(context.Background())
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", a.store.Name()),
		zap.String("source", cfg.Source.Type),
	)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(a.ingest, a.store, cfg.MaxUploadSize),
		Events:    handler.NewEventHandler(a.ingest),
		Query:     handler.NewQueryHandler(a.pipeline, a.retriever),
		Metrics:   promhttp.Handler(),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RateLimit(time.Duration(cfg.QueryInterval)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduleJobs(scheduler, a); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("server stopping...")
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func scheduleJobs(s schedule.Scheduler, a *app) error {
	jobs := a.cfg.Jobs
	if a.cacheRepo != nil {
		retention := time.Duration(jobs.CacheRetentionHours) * time.Hour
		if err := s.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, retention), jobs.CacheCleanupSpec); err != nil {
			return err
		}
	}
	if a.source != nil {
		if err := s.AddJob(job.NewSourceSyncJob(a.source, a.ingest, jobs.SourceSyncPrefix), jobs.SourceSyncSpec); err != nil {
			return err
		}
	}
	return nil
}
