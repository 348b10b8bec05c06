package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/config"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "", errors.New("boom")
}

func (failingProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return nil, errors.New("boom")
}

func init() {
	Register("failing", func(args interface{}) (IProvider, error) {
		return failingProvider{}, nil
	})
}

func newOpenAIServer(t *testing.T, seen *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = r.Header.Clone()
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  the answer  "}}]}`))
		case "/v1/embeddings":
			dims, _ := req["dimensions"].(float64)
			if dims == 0 {
				dims = 3
			}
			values := make([]float32, int(dims))
			for i := range values {
				values[i] = 0.5
			}
			resp := map[string]interface{}{
				"object": "list",
				"data":   []map[string]interface{}{{"object": "embedding", "index": 0, "embedding": values}},
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider(t *testing.T) {
	srv := newOpenAIServer(t, nil)
	p, err := NewProvider("openai", map[string]interface{}{"api_key": "sk-test", "base_url": srv.URL + "/v1", "dimension": 8})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "gpt-3.5-turbo", "question")
	require.NoError(t, err)
	require.Equal(t, "the answer", out)

	values, err := p.Embed(context.Background(), "text-embedding-3-small", "hello", TaskQuery)
	require.NoError(t, err)
	require.Len(t, values, 8)

	values, err = p.Embed(context.Background(), "text-embedding-ada-002", "hello", TaskQuery)
	require.NoError(t, err)
	require.Len(t, values, 3)
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("openai", nil)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenRouterSendsHeaders(t *testing.T) {
	var seen http.Header
	srv := newOpenAIServer(t, &seen)
	p, err := NewProvider("openrouter", map[string]interface{}{
		"api_key":      "or-test",
		"base_url":     srv.URL + "/v1",
		"http_referer": "https://docqa.local",
		"x_title":      "docqa",
	})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "openai/gpt-4o-mini", "question")
	require.NoError(t, err)
	require.Equal(t, "https://docqa.local", seen.Get("HTTP-Referer"))
	require.Equal(t, "docqa", seen.Get("X-Title"))
	require.Equal(t, "Bearer or-test", seen.Get("Authorization"))
}

func TestUnknownProvider(t *testing.T) {
	_, err := NewProvider("nope", nil)
	require.True(t, appErr.IsConfiguration(err))
	_, err = NewProvider(" ", nil)
	require.True(t, appErr.IsConfiguration(err))
}

type fakeBedrock struct {
	modelID string
	body    map[string]interface{}
	reply   string
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.modelID = aws.ToString(params.ModelId)
	f.body = map[string]interface{}{}
	if err := json.Unmarshal(params.Body, &f.body); err != nil {
		return nil, err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.reply)}, nil
}

func TestBedrockTitanText(t *testing.T) {
	client := &fakeBedrock{reply: `{"results":[{"outputText":" titan says hi "}]}`}
	p := NewBedrockProvider(client, 0)
	out, err := p.Generate(context.Background(), "amazon.titan-text-express-v1", "prompt")
	require.NoError(t, err)
	require.Equal(t, "titan says hi", out)
	require.Equal(t, "amazon.titan-text-express-v1", client.modelID)
	require.Equal(t, "prompt", client.body["inputText"])
}

func TestBedrockAnthropic(t *testing.T) {
	client := &fakeBedrock{reply: `{"content":[{"type":"text","text":"claude says hi"}]}`}
	p := NewBedrockProvider(client, 0)
	out, err := p.Generate(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", "prompt")
	require.NoError(t, err)
	require.Equal(t, "claude says hi", out)
	require.Equal(t, bedrockAnthropicVersion, client.body["anthropic_version"])
}

func TestBedrockEmbedding(t *testing.T) {
	client := &fakeBedrock{reply: `{"embedding":[0.1,0.2,0.3,0.4]}`}
	p := NewBedrockProvider(client, 4)
	values, err := p.Embed(context.Background(), "amazon.titan-embed-text-v2:0", "hello", TaskDocument)
	require.NoError(t, err)
	require.Len(t, values, 4)
	require.Equal(t, float64(4), client.body["dimensions"])

	_, err = p.Embed(context.Background(), "amazon.titan-embed-text-v1", "hello", TaskDocument)
	require.NoError(t, err)
	_, hasDims := client.body["dimensions"]
	require.False(t, hasDims)
}

func TestEmbedderRejectsWrongDimension(t *testing.T) {
	e := NewEmbedder(NewMockProvider(8), "mock-embedding", 16)
	_, err := e.Embed(context.Background(), "hello world", TaskQuery)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	require.True(t, appErr.IsEmbedding(err))
}

func TestEmbeddingProvider(t *testing.T) {
	p := NewEmbeddingProvider(NewEmbedder(NewMockProvider(32), "mock-embedding", 32))
	require.Equal(t, 32, p.Dimension())
	require.Equal(t, "mock/mock-embedding", p.ModelName())

	q, err := p.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, MockEmbedding("hello world", 32), q)

	docs, err := p.EmbedDocuments(context.Background(), []string{"a b", "c d", "e f"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, MockEmbedding("c d", 32), docs[1])

	var nilProvider *EmbeddingProvider
	_, err = nilProvider.EmbedText(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveGeneratorFallsBackToMock(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	gen := ResolveGenerator(context.Background(), config.GenerationConfig{
		ProviderConfig: config.ProviderConfig{Provider: "openai"},
	})
	require.NotNil(t, gen)
	require.Equal(t, "mock/mock-model", gen.ModelName())
	out, err := gen.Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "[Mock Response] hi...", out)
}

func TestResolveGeneratorNone(t *testing.T) {
	gen := ResolveGenerator(context.Background(), config.GenerationConfig{
		ProviderConfig: config.ProviderConfig{Provider: "None"},
	})
	require.Nil(t, gen)
}

func TestResolveGeneratorGroupsFallbacks(t *testing.T) {
	gen := ResolveGenerator(context.Background(), config.GenerationConfig{
		ProviderConfig: config.ProviderConfig{Provider: "failing", Model: "f"},
		Fallback:       []config.ProviderConfig{{Provider: "mock"}},
	})
	out, err := gen.Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "[Mock Response] hi...", out)
}

func TestResolveEmbedderRuntimeFallback(t *testing.T) {
	e := ResolveEmbedder(context.Background(), config.EmbeddingConfig{
		ProviderConfig: config.ProviderConfig{Provider: "failing"},
		Dimension:      24,
	})
	require.Equal(t, 24, e.Dimension())
	values, err := e.Embed(context.Background(), "hello world", TaskQuery)
	require.NoError(t, err)
	require.Equal(t, MockEmbedding("hello world", 24), values)
}

func TestResolveEmbedderMockOnly(t *testing.T) {
	e := ResolveEmbedder(context.Background(), config.EmbeddingConfig{
		ProviderConfig: config.ProviderConfig{Provider: "mock"},
	})
	require.Equal(t, DefaultDimension, e.Dimension())
	require.Equal(t, "mock/mock-embedding", e.ModelName())
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowGenerator) ModelName() string { return "slow" }

type blankGenerator struct{}

func (blankGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "   ", nil
}

func (blankGenerator) ModelName() string { return "blank" }

func TestGenerateText(t *testing.T) {
	_, err := GenerateText(context.Background(), nil, "p", 0)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = GenerateText(context.Background(), slowGenerator{}, "p", 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = GenerateText(context.Background(), blankGenerator{}, "p", 0)
	require.Error(t, err)

	out, err := GenerateText(context.Background(), NewGenerator(NewMockProvider(0), "mock-model"), "p", time.Second)
	require.NoError(t, err)
	require.Equal(t, "[Mock Response] p...", out)
}
