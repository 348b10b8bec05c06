package retrieval

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

const DefaultTopK = 5

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	embedder QueryEmbedder
	store    vectorstore.VectorStore
	k        int
	filter   map[string]interface{}
}

type Option func(*Retriever)

func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithFilter restricts results to documents whose metadata carries every
// key of filter with an equal value.
func WithFilter(filter map[string]interface{}) Option {
	return func(r *Retriever) {
		r.filter = model.CopyMetadata(filter)
	}
}

func New(embedder QueryEmbedder, store vectorstore.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, store: store, k: DefaultTopK}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// With returns a copy of r with opts applied on top of its settings.
func (r *Retriever) With(opts ...Option) *Retriever {
	cp := *r
	cp.filter = model.CopyMetadata(r.filter)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns up to k chunks most similar to query. Any failure is
// logged and reported as no results.
func (r *Retriever) Retrieve(ctx context.Context, query string) []model.RetrievalResult {
	logger := logutil.GetLogger(ctx).With(zap.Int("k", r.k))
	if r.embedder == nil || r.store == nil {
		logger.Error("retriever is not configured", zap.Bool("has_embedder", r.embedder != nil), zap.Bool("has_store", r.store != nil))
		return []model.RetrievalResult{}
	}
	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return []model.RetrievalResult{}
	}
	docs := r.store.SimilaritySearch(ctx, embedding, r.k, r.filter)
	out := make([]model.RetrievalResult, 0, len(docs))
	for _, doc := range docs {
		meta := model.CopyMetadata(doc.Metadata)
		meta["document_id"] = doc.DocumentID
		meta["chunk_id"] = doc.ChunkID
		out = append(out, model.RetrievalResult{Content: doc.Text, Metadata: meta})
	}
	logger.Debug("retrieved documents", zap.Int("count", len(out)))
	return out
}
