// Package storetest holds the behaviour every vector store backend must share.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

const dim = 384

// Run executes the suite. newBackend must return an empty backend.
func Run(t *testing.T, newBackend func(t *testing.T) vectorstore.Backend) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s *vectorstore.Store)
	}{
		{"EmptyStore", testEmptyStore},
		{"AddThenGet", testAddThenGet},
		{"GetMissing", testGetMissing},
		{"UpsertKeepsSize", testUpsertKeepsSize},
		{"DeleteRemovesAllChunks", testDeleteRemovesAllChunks},
		{"DeleteMissingSucceeds", testDeleteMissingSucceeds},
		{"ReplaceDropsStaleChunks", testReplaceDropsStaleChunks},
		{"TopOne", testTopOne},
		{"DescendingOrder", testDescendingOrder},
		{"ResultBound", testResultBound},
		{"FilterCategory", testFilterCategory},
		{"FilterMissingKey", testFilterMissingKey},
		{"ZeroNormQuery", testZeroNormQuery},
		{"ZeroNormDocumentSkipped", testZeroNormDocumentSkipped},
		{"DeterministicTies", testDeterministicTies},
		{"RejectInvalid", testRejectInvalid},
		{"ResultsAreCopies", testResultsAreCopies},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, vectorstore.NewStore(newBackend(t)))
		})
	}
}

func filled(v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

// axis returns a unit vector mixing the first two axes; larger w points
// closer to the first axis.
func axis(w float32) []float32 {
	out := make([]float32, dim)
	out[0] = w
	out[1] = 1 - w
	return out
}

func doc(documentID, chunkID string, embedding []float32, meta map[string]interface{}) *model.VectorDocument {
	return &model.VectorDocument{
		DocumentID: documentID,
		ChunkID:    chunkID,
		Text:       "text of " + documentID + "/" + chunkID,
		Embedding:  embedding,
		Metadata:   meta,
	}
}

func ids(docs []*model.VectorDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.DocumentID+"/"+d.ChunkID)
	}
	return out
}

func testEmptyStore(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	res := s.SimilaritySearch(ctx, filled(0.5), 5, nil)
	require.NotNil(t, res)
	require.Empty(t, res)
	require.Equal(t, 0, s.Count(ctx))
	require.True(t, s.AddDocuments(ctx, nil))
}

func testAddThenGet(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	in := doc("test_doc", "chunk_1", filled(0.1), map[string]interface{}{
		"author": "test",
		"source": "upload",
		"page":   3,
		"tags":   []interface{}{"a", "b"},
	})
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{in}))
	got, ok := s.GetDocument(ctx, "test_doc")
	require.True(t, ok)
	require.Equal(t, in.Text, got.Text)
	require.Equal(t, map[string]interface{}{
		"author": "test",
		"source": "upload",
		"page":   float64(3),
		"tags":   []interface{}{"a", "b"},
	}, got.Metadata)
	require.Equal(t, "chunk_1", got.ChunkID)
	require.Len(t, got.Embedding, dim)
}

func testGetMissing(t *testing.T, s *vectorstore.Store) {
	got, ok := s.GetDocument(context.Background(), "nonexistent")
	require.False(t, ok)
	require.Nil(t, got)
}

func testUpsertKeepsSize(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{
		doc("d", "c0", filled(0.1), nil),
		doc("d", "c1", filled(0.2), nil),
	}))
	require.Equal(t, 2, s.Count(ctx))
	replaced := doc("d", "c0", filled(0.3), map[string]interface{}{"v": "2"})
	replaced.Text = "replaced"
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{replaced}))
	require.Equal(t, 2, s.Count(ctx))

	res := s.SimilaritySearch(ctx, filled(1), 10, map[string]interface{}{"v": "2"})
	require.Len(t, res, 1)
	require.Equal(t, "replaced", res[0].Text)
}

func testDeleteRemovesAllChunks(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	var docs []*model.VectorDocument
	for i := 0; i < 30; i++ {
		docs = append(docs, doc("big", fmt.Sprintf("big_chunk_%d", i), axis(0.9), nil))
	}
	docs = append(docs, doc("other", "other_chunk_0", axis(0.8), nil))
	require.True(t, s.AddDocuments(ctx, docs))
	require.Equal(t, 31, s.Count(ctx))

	require.True(t, s.DeleteDocument(ctx, "big"))
	_, ok := s.GetDocument(ctx, "big")
	require.False(t, ok)
	res := s.SimilaritySearch(ctx, axis(0.9), 50, nil)
	require.Equal(t, []string{"other/other_chunk_0"}, ids(res))
	require.Equal(t, 1, s.Count(ctx))
}

func testDeleteMissingSucceeds(t *testing.T, s *vectorstore.Store) {
	require.True(t, s.DeleteDocument(context.Background(), "missing"))
	require.True(t, s.DeleteDocument(context.Background(), "missing"))
}

func testReplaceDropsStaleChunks(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	var docs []*model.VectorDocument
	for i := 0; i < 4; i++ {
		docs = append(docs, doc("r", fmt.Sprintf("r_chunk_%d", i), axis(0.9), nil))
	}
	docs = append(docs, doc("other", "other_chunk_0", axis(0.8), nil))
	require.True(t, s.AddDocuments(ctx, docs))

	replacement := doc("r", "r_chunk_0", axis(0.7), map[string]interface{}{"v": "2"})
	require.True(t, s.ReplaceDocument(ctx, "r", []*model.VectorDocument{replacement}))
	require.Equal(t, 2, s.Count(ctx))
	res := s.SimilaritySearch(ctx, axis(0.9), 10, nil)
	require.ElementsMatch(t, []string{"r/r_chunk_0", "other/other_chunk_0"}, ids(res))
	got, ok := s.GetDocument(ctx, "r")
	require.True(t, ok)
	require.Equal(t, "2", got.Metadata["v"])

	require.False(t, s.ReplaceDocument(ctx, "r", []*model.VectorDocument{doc("other", "x", axis(0.5), nil)}))
	require.Equal(t, 2, s.Count(ctx))

	require.True(t, s.ReplaceDocument(ctx, "r", nil))
	_, ok = s.GetDocument(ctx, "r")
	require.False(t, ok)
	require.Equal(t, 1, s.Count(ctx))
}

func testTopOne(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{
		doc("doc1", "chunk_1", filled(0.9), nil),
		doc("doc2", "chunk_1", filled(0.1), nil),
	}))
	res := s.SimilaritySearch(ctx, filled(0.9), 1, nil)
	require.Equal(t, []string{"doc1/chunk_1"}, ids(res))

	skewed := filled(0.1)
	skewed[0] = 5
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{doc("doc2", "chunk_1", skewed, nil)}))
	res = s.SimilaritySearch(ctx, filled(0.9), 2, nil)
	require.Equal(t, []string{"doc1/chunk_1", "doc2/chunk_1"}, ids(res))
}

func testDescendingOrder(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{
		doc("a", "c", axis(0.2), nil),
		doc("b", "c", axis(0.9), nil),
		doc("c", "c", axis(0.5), nil),
		doc("d", "c", axis(0.0), nil),
	}))
	query := axis(1)
	res := s.SimilaritySearch(ctx, query, 4, nil)
	require.Equal(t, []string{"b/c", "c/c", "a/c", "d/c"}, ids(res))
	prev := 2.0
	for _, d := range res {
		score, ok := vectorstore.CosineSimilarity(query, d.Embedding)
		require.True(t, ok)
		require.LessOrEqual(t, score, prev)
		prev = score
	}
}

func testResultBound(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	var docs []*model.VectorDocument
	for i := 0; i < 6; i++ {
		docs = append(docs, doc(fmt.Sprintf("doc%d", i), "c", axis(float32(i)/10), nil))
	}
	require.True(t, s.AddDocuments(ctx, docs))
	for _, k := range []int{0, 1, 3, 6, 10} {
		res := s.SimilaritySearch(ctx, axis(1), k, nil)
		want := k
		if want > len(docs) {
			want = len(docs)
		}
		require.Len(t, res, want, "k=%d", k)
	}
}

func testFilterCategory(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	categories := []string{"A", "B", "A", "C", "A"}
	var docs []*model.VectorDocument
	for i, c := range categories {
		docs = append(docs, doc(fmt.Sprintf("doc%d", i), "c", axis(float32(i)/5), map[string]interface{}{"category": c}))
	}
	require.True(t, s.AddDocuments(ctx, docs))
	filter := map[string]interface{}{"category": "A"}
	for _, k := range []int{1, 2, 3, 5, 10} {
		res := s.SimilaritySearch(ctx, axis(1), k, filter)
		require.LessOrEqual(t, len(res), 3)
		for _, d := range res {
			require.Equal(t, "A", d.Metadata["category"])
		}
	}
	require.Len(t, s.SimilaritySearch(ctx, axis(1), 10, filter), 3)
}

func testFilterMissingKey(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{
		doc("with", "c", axis(1), map[string]interface{}{"lang": "en", "page": 2}),
		doc("without", "c", axis(1), map[string]interface{}{}),
	}))
	res := s.SimilaritySearch(ctx, axis(1), 5, map[string]interface{}{"lang": "en"})
	require.Equal(t, []string{"with/c"}, ids(res))
	res = s.SimilaritySearch(ctx, axis(1), 5, map[string]interface{}{"page": 2})
	require.Equal(t, []string{"with/c"}, ids(res))
	res = s.SimilaritySearch(ctx, axis(1), 5, map[string]interface{}{"lang": "en", "page": 3})
	require.Empty(t, res)
}

func testZeroNormQuery(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{doc("a", "c", axis(1), nil)}))
	res := s.SimilaritySearch(ctx, filled(0), 5, nil)
	require.NotNil(t, res)
	require.Empty(t, res)
}

func testZeroNormDocumentSkipped(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{
		doc("zero", "c", filled(0), nil),
		doc("one", "c", axis(1), nil),
	}))
	res := s.SimilaritySearch(ctx, axis(1), 5, nil)
	require.Equal(t, []string{"one/c"}, ids(res))
	_, ok := s.GetDocument(ctx, "zero")
	require.True(t, ok)
}

func testDeterministicTies(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	var docs []*model.VectorDocument
	for i := 0; i < 5; i++ {
		docs = append(docs, doc(fmt.Sprintf("tie%d", i), "c", axis(0.5), nil))
	}
	require.True(t, s.AddDocuments(ctx, docs))
	first := ids(s.SimilaritySearch(ctx, axis(0.5), 3, nil))
	for i := 0; i < 3; i++ {
		require.Equal(t, first, ids(s.SimilaritySearch(ctx, axis(0.5), 3, nil)))
	}
}

func testRejectInvalid(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	require.False(t, s.AddDocuments(ctx, []*model.VectorDocument{doc("", "c", axis(1), nil)}))
	require.False(t, s.AddDocuments(ctx, []*model.VectorDocument{doc("d", "c", nil, nil)}))
	require.False(t, s.AddDocuments(ctx, []*model.VectorDocument{nil}))
	require.Equal(t, 0, s.Count(ctx))
}

func testResultsAreCopies(t *testing.T, s *vectorstore.Store) {
	ctx := context.Background()
	in := doc("a", "c", axis(1), map[string]interface{}{"k": "v"})
	require.True(t, s.AddDocuments(ctx, []*model.VectorDocument{in}))
	in.Metadata["k"] = "changed"
	in.Text = "changed"

	res := s.SimilaritySearch(ctx, axis(1), 1, nil)
	require.Len(t, res, 1)
	require.Equal(t, "v", res[0].Metadata["k"])
	res[0].Metadata["k"] = "mutated"

	got, ok := s.GetDocument(ctx, "a")
	require.True(t, ok)
	require.Equal(t, "v", got.Metadata["k"])
	require.Equal(t, "text of a/c", got.Text)
}
