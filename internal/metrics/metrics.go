package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestedChunksTotal counts chunks written to the vector store.
	IngestedChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_ingested_chunks_total",
			Help: "Chunks written to the vector store",
		},
	)

	// QueriesTotal counts answered queries by answer mode.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_queries_total",
			Help: "Answered queries by mode",
		},
		[]string{"mode"},
	)

	// StoreErrorsTotal counts backend failures swallowed by the vector store.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_store_errors_total",
			Help: "Vector store backend failures by operation",
		},
		[]string{"op"},
	)

	// EmbeddingCacheLookups counts embedding cache lookups by layer and result.
	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_embedding_cache_lookups_total",
			Help: "Embedding cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_query_duration_seconds",
			Help:    "Query latency distribution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Query modes.
const (
	ModeChain     = "chain"
	ModeFallback  = "fallback"
	ModeNoResults = "no_results"
	ModeError     = "error"
)

// Cache lookup labels.
const (
	CacheLayerLRU = "lru"
	CacheLayerDB  = "db"
	CacheHit      = "hit"
	CacheMiss     = "miss"
)
