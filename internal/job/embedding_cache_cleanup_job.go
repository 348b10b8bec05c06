package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultCacheRetention = 30 * 24 * time.Hour

type CacheCleaner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob drops cached embeddings older than the
// retention window.
type EmbeddingCacheCleanupJob struct {
	repo      CacheCleaner
	retention time.Duration
	now       func() time.Time
}

func NewEmbeddingCacheCleanupJob(repo CacheCleaner, retention time.Duration) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, retention: retention, now: time.Now}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = defaultCacheRetention
	}
	cutoff := j.now().Add(-retention).Unix()
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache pruned", zap.Int64("deleted", deleted), zap.Int64("cutoff", cutoff))
	return nil
}
