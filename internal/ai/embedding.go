package ai

import (
	"context"
)

// EmbeddingProvider is the text facing view of an embedder: queries and
// documents are embedded with their own task type.
type EmbeddingProvider struct {
	embedder IEmbedder
}

func NewEmbeddingProvider(e IEmbedder) *EmbeddingProvider {
	return &EmbeddingProvider{embedder: e}
}

func (p *EmbeddingProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if p == nil || p.embedder == nil {
		return nil, ErrUnavailable
	}
	return p.embedder.Embed(ctx, text, TaskQuery)
}

func (p *EmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if p == nil || p.embedder == nil {
		return nil, ErrUnavailable
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		values, err := p.embedder.Embed(ctx, text, TaskDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}

func (p *EmbeddingProvider) Dimension() int {
	if p == nil || p.embedder == nil {
		return 0
	}
	return p.embedder.Dimension()
}

func (p *EmbeddingProvider) ModelName() string {
	if p == nil || p.embedder == nil {
		return ""
	}
	return p.embedder.ModelName()
}
