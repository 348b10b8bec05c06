package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/xxxsen/docqa/internal/pkg/awsutil"
)

const (
	defaultBedrockRegion    = "us-east-1"
	bedrockMaxTokens        = 512
	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

type bedrockConfig struct {
	awsutil.Config
	Dimension int `json:"dimension"`
}

// BedrockClient is the subset of the bedrock runtime api used here.
type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockProvider struct {
	client    BedrockClient
	dimension int
}

func NewBedrockProvider(client BedrockClient, dimension int) IProvider {
	return &bedrockProvider{client: client, dimension: dimension}
}

func (p *bedrockProvider) Name() string {
	return "bedrock"
}

type titanTextRequest struct {
	InputText            string              `json:"inputText"`
	TextGenerationConfig titanTextGeneration `json:"textGenerationConfig"`
}

type titanTextGeneration struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
}

type titanTextResponse struct {
	Results []struct {
		OutputText string `json:"outputText"`
	} `json:"results"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type titanEmbedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *bedrockProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if strings.HasPrefix(model, "anthropic.") {
		var out anthropicResponse
		err := p.invoke(ctx, model, anthropicRequest{
			AnthropicVersion: bedrockAnthropicVersion,
			MaxTokens:        bedrockMaxTokens,
			Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
		}, &out)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, c := range out.Content {
			if c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
		return strings.TrimSpace(sb.String()), nil
	}
	var out titanTextResponse
	err := p.invoke(ctx, model, titanTextRequest{
		InputText:            prompt,
		TextGenerationConfig: titanTextGeneration{MaxTokenCount: bedrockMaxTokens},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", fmt.Errorf("bedrock response has no results")
	}
	return strings.TrimSpace(out.Results[0].OutputText), nil
}

func (p *bedrockProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	req := titanEmbedRequest{InputText: text}
	// titan v1 has a fixed output size
	if p.dimension > 0 && strings.Contains(model, "embed-text-v2") {
		req.Dimensions = p.dimension
	}
	var out titanEmbedResponse
	if err := p.invoke(ctx, model, req, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock response has no embedding")
	}
	return out.Embedding, nil
}

func (p *bedrockProvider) invoke(ctx context.Context, model string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("bedrock invoke %s: %w", model, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode bedrock response: %w", err)
	}
	return nil
}

func createBedrockFactory(args interface{}) (IProvider, error) {
	cfg := &bedrockConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	awsCfg, err := awsutil.Load(ctx, cfg.Config, defaultBedrockRegion)
	if err != nil {
		return nil, err
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("bedrock credentials: %w: %w", ErrUnavailable, err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.BaseEndpoint = awsutil.Endpoint(cfg.Config)
	})
	return NewBedrockProvider(client, cfg.Dimension), nil
}

func init() {
	Register("bedrock", createBedrockFactory)
}
