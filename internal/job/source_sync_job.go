package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/model"
)

type SourceIngester interface {
	Supports(filename string) bool
	IngestFromSource(ctx context.Context, key string, extra map[string]interface{}) (*model.IngestResult, error)
	Delete(ctx context.Context, documentID string) error
}

// SourceSyncJob ingests objects under a prefix that are new or whose etag
// changed since the last successful run, and deletes the documents of
// objects it synced earlier that are no longer listed.
//
// What it has synced is kept in memory only. After a restart the first run
// ingests the whole prefix again, and documents whose objects vanished while
// the process was down are left in the store.
type SourceSyncJob struct {
	source   filestore.Store
	ingester SourceIngester
	prefix   string

	mu   sync.Mutex
	seen map[string]string
}

func NewSourceSyncJob(source filestore.Store, ingester SourceIngester, prefix string) *SourceSyncJob {
	return &SourceSyncJob{
		source:   source,
		ingester: ingester,
		prefix:   prefix,
		seen:     make(map[string]string),
	}
}

func (j *SourceSyncJob) Name() string {
	return "source_sync"
}

func (j *SourceSyncJob) Run(ctx context.Context) error {
	if j.source == nil || j.ingester == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source", j.source.Type()), zap.String("prefix", j.prefix))
	objects, err := j.source.List(ctx, j.prefix)
	if err != nil {
		return fmt.Errorf("list source: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	ingested := 0
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !j.ingester.Supports(obj.Key) {
			continue
		}
		if etag, ok := j.seen[obj.Key]; ok && etag == obj.ETag {
			continue
		}
		if _, err := j.ingester.IngestFromSource(ctx, obj.Key, nil); err != nil {
			logger.Error("sync object failed", zap.String("key", obj.Key), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", obj.Key, err))
			continue
		}
		j.seen[obj.Key] = obj.ETag
		ingested++
	}

	listed := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		listed[obj.Key] = struct{}{}
	}
	removed := 0
	for key := range j.seen {
		if _, ok := listed[key]; ok {
			continue
		}
		if err := j.ingester.Delete(ctx, key); err != nil {
			logger.Error("drop vanished object failed", zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		delete(j.seen, key)
		removed++
	}
	logger.Info("source synced", zap.Int("objects", len(objects)), zap.Int("ingested", ingested),
		zap.Int("removed", removed), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}
