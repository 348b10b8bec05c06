package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

type staticEmbedder struct {
	vec []float32
	err error
}

func (s *staticEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func seededStore(t *testing.T) *vectorstore.Store {
	s := vectorstore.NewStore(vectorstore.NewMemoryBackend())
	require.True(t, s.AddDocuments(context.Background(), []*model.VectorDocument{
		{DocumentID: "a.txt", ChunkID: "a.txt_chunk_0", Text: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]interface{}{"category": "A", "chunk_index": 0}},
		{DocumentID: "b.txt", ChunkID: "b.txt_chunk_0", Text: "beta", Embedding: []float32{0.6, 0.4}, Metadata: map[string]interface{}{"category": "B"}},
		{DocumentID: "c.txt", ChunkID: "c.txt_chunk_0", Text: "gamma", Embedding: []float32{0, 1}, Metadata: map[string]interface{}{"category": "A"}},
	}))
	return s
}

func TestRetrieve(t *testing.T) {
	r := New(&staticEmbedder{vec: []float32{1, 0}}, seededStore(t), WithTopK(2))
	res := r.Retrieve(context.Background(), "question")
	require.Len(t, res, 2)
	require.Equal(t, "alpha", res[0].Content)
	require.Equal(t, "a.txt", res[0].Metadata["document_id"])
	require.Equal(t, "a.txt_chunk_0", res[0].Metadata["chunk_id"])
	require.Equal(t, "A", res[0].Metadata["category"])
	require.Equal(t, "beta", res[1].Content)
}

func TestRetrieveWithFilter(t *testing.T) {
	base := New(&staticEmbedder{vec: []float32{1, 0}}, seededStore(t))
	r := base.With(WithFilter(map[string]interface{}{"category": "A"}), WithTopK(10))
	res := r.Retrieve(context.Background(), "question")
	require.Len(t, res, 2)
	for _, item := range res {
		require.Equal(t, "A", item.Metadata["category"])
	}
	require.Equal(t, DefaultTopK, base.K())
	require.Len(t, base.Retrieve(context.Background(), "question"), 3)
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	store := seededStore(t)
	tests := []struct {
		name string
		r    *Retriever
	}{
		{"embed error", New(&staticEmbedder{err: errors.New("provider down")}, store)},
		{"no embedder", New(nil, store)},
		{"no store", New(&staticEmbedder{vec: []float32{1, 0}}, nil)},
		{"zero query", New(&staticEmbedder{vec: []float32{0, 0}}, store)},
		{"unavailable provider", New(ai.NewEmbeddingProvider(nil), store)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.r.Retrieve(context.Background(), "q")
			require.NotNil(t, res)
			require.Empty(t, res)
		})
	}
}

func TestRetrieveWithMockEmbedder(t *testing.T) {
	ctx := context.Background()
	embedder := ai.NewEmbeddingProvider(ai.NewEmbedder(ai.NewMockProvider(64), "mock-embedding", 64))
	store := vectorstore.NewStore(vectorstore.NewMemoryBackend())
	texts := []string{"the cat sat on the mat", "stock markets fell sharply today"}
	vecs, err := embedder.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	for i, text := range texts {
		require.True(t, store.AddDocuments(ctx, []*model.VectorDocument{
			{DocumentID: text, ChunkID: "c", Text: text, Embedding: vecs[i]},
		}))
	}
	res := New(embedder, store, WithTopK(1)).Retrieve(ctx, "the cat sat on the mat")
	require.Len(t, res, 1)
	require.Equal(t, texts[0], res[0].Content)
}
