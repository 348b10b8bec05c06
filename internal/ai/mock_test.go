package ai

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func norm(values []float32) float64 {
	var sq float64
	for _, v := range values {
		sq += float64(v) * float64(v)
	}
	return math.Sqrt(sq)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (norm(a) * norm(b))
}

func TestMockEmbeddingUnitLengthAndDeterministic(t *testing.T) {
	inputs := []string{"", " ", "a", "!!", "hello world", "Retrieval augmented generation", strings.Repeat("word ", 200), "문서 검색"}
	for _, in := range inputs {
		v1 := MockEmbedding(in, 384)
		v2 := MockEmbedding(in, 384)
		require.Len(t, v1, 384)
		require.Equal(t, v1, v2)
		require.InDelta(t, 1.0, norm(v1), 1e-5)
	}
}

func TestMockEmbeddingDimension(t *testing.T) {
	require.Len(t, MockEmbedding("hello world", 16), 16)
	require.Len(t, MockEmbedding("hello world", 0), DefaultDimension)
}

func TestMockEmbeddingIsCaseInsensitiveOnWords(t *testing.T) {
	require.Equal(t, MockEmbedding("Hello World", 64), MockEmbedding("hello world", 64))
}

func TestMockEmbeddingSharedWordsAreCloser(t *testing.T) {
	base := MockEmbedding("the cat sat on the mat", 384)
	near := MockEmbedding("the cat sat on a mat", 384)
	far := MockEmbedding("quarterly revenue forecast spreadsheet", 384)
	require.Greater(t, cosine(base, near), cosine(base, far))
}

func TestMockGenerate(t *testing.T) {
	p := NewMockProvider(0)
	out, err := p.Generate(context.Background(), "mock-model", "short prompt")
	require.NoError(t, err)
	require.Equal(t, "[Mock Response] short prompt...", out)

	long := strings.Repeat("x", 500)
	out, err = p.Generate(context.Background(), "mock-model", long)
	require.NoError(t, err)
	require.Equal(t, "[Mock Response] "+strings.Repeat("x", 200)+"...", out)
}
