package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

type openAIConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	Organization string `json:"organization"`
	Dimension    int    `json:"dimension"`
}

type openAIProvider struct {
	name      string
	client    *openai.Client
	dimension int
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	}
	// only the v3 embedding models accept a reduced output size
	if p.dimension > 0 && strings.HasPrefix(model, "text-embedding-3") {
		req.Dimensions = p.dimension
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", p.name, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return resp.Data[0].Embedding, nil
}

func newOpenAICompatible(name string, cfg *openAIConfig, defaultBaseURL string, headers map[string]string) (IProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if clientConfig.BaseURL == "" {
		clientConfig.BaseURL = defaultBaseURL
	}
	if cfg.Organization != "" {
		clientConfig.OrgID = cfg.Organization
	}
	if len(headers) > 0 {
		clientConfig.HTTPClient = &http.Client{Transport: &headerTransport{headers: headers, next: http.DefaultTransport}}
	}
	return &openAIProvider{
		name:      name,
		client:    openai.NewClientWithConfig(clientConfig),
		dimension: cfg.Dimension,
	}, nil
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req)
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	return newOpenAICompatible("openai", cfg, defaultOpenAIBaseURL, nil)
}

type openRouterConfig struct {
	openAIConfig
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// createOpenRouterFactory builds an OpenAI compatible client against
// OpenRouter. Attribution headers are sent on every request when set.
func createOpenRouterFactory(args interface{}) (IProvider, error) {
	cfg := &openRouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	headers := map[string]string{"X-Title": "docqa"}
	if cfg.XTitle != "" {
		headers["X-Title"] = cfg.XTitle
	}
	if cfg.HTTPReferer != "" {
		headers["HTTP-Referer"] = cfg.HTTPReferer
	}
	return newOpenAICompatible("openrouter", &cfg.openAIConfig, defaultOpenRouterBaseURL, headers)
}

func init() {
	Register("openai", createOpenAIFactory)
	Register("openrouter", createOpenRouterFactory)
}
