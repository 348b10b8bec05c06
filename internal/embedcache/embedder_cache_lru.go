package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/metrics"
)

// WrapLRU keeps up to size embeddings in process for ttl. Entries are
// copied in and out so callers may modify what they get back.
func WrapLRU(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		IEmbedder: e,
		cache:     expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	cacheKey, _, _ := buildCacheKey(l.IEmbedder.ModelName(), taskType, text)
	if cached, ok := l.cache.Get(cacheKey); ok {
		metrics.EmbeddingCacheLookups.WithLabelValues(metrics.CacheLayerLRU, metrics.CacheHit).Inc()
		return cloneEmbedding(cached), nil
	}
	metrics.EmbeddingCacheLookups.WithLabelValues(metrics.CacheLayerLRU, metrics.CacheMiss).Inc()
	values, err := l.IEmbedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		l.cache.Add(cacheKey, cloneEmbedding(values))
	}
	return values, nil
}

func cloneEmbedding(values []float32) []float32 {
	if values == nil {
		return nil
	}
	return append(make([]float32, 0, len(values)), values...)
}
