package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
)

// ProviderNone disables generation; answers are built from retrieved text only.
const ProviderNone = "none"

var defaultGenerationModels = map[string]string{
	"openai":     "gpt-3.5-turbo",
	"openrouter": "openai/gpt-4o-mini",
	"gemini":     "gemini-2.0-flash",
	"bedrock":    "amazon.titan-text-express-v1",
	"mock":       "mock-model",
}

var defaultEmbeddingModels = map[string]string{
	"openai":     "text-embedding-3-small",
	"openrouter": "openai/text-embedding-3-small",
	"gemini":     "text-embedding-004",
	"bedrock":    "amazon.titan-embed-text-v2:0",
	"mock":       "mock-embedding",
}

func DefaultGenerationModel(provider string) string {
	if m, ok := defaultGenerationModels[normalizeName(provider)]; ok {
		return m
	}
	return defaultGenerationModels["mock"]
}

func DefaultEmbeddingModel(provider string) string {
	if m, ok := defaultEmbeddingModels[normalizeName(provider)]; ok {
		return m
	}
	return defaultEmbeddingModels["mock"]
}

// ResolveGenerator builds the configured provider and its fallbacks once.
// Providers that cannot be built are skipped; when none is left the mock
// generator is used. A nil result means generation is disabled.
func ResolveGenerator(ctx context.Context, cfg config.GenerationConfig) IGenerator {
	logger := logutil.GetLogger(ctx)
	if normalizeName(cfg.Provider) == ProviderNone {
		logger.Info("generation disabled, answers use retrieved context only")
		return nil
	}
	attempts := append([]config.ProviderConfig{cfg.ProviderConfig}, cfg.Fallback...)
	var entries []GeneratorEntry
	for i, attempt := range attempts {
		p, err := NewProvider(attempt.Provider, attempt.Data)
		if err != nil {
			logger.Warn("generation provider unavailable", zap.Int("index", i), zap.String("provider", attempt.Provider), zap.Error(err))
			continue
		}
		model := attempt.Model
		if model == "" {
			model = DefaultGenerationModel(attempt.Provider)
		}
		entries = append(entries, GeneratorEntry{Name: p.Name(), Generator: NewGenerator(p, model)})
	}
	if len(entries) == 0 {
		logger.Warn("no generation provider available, falling back to mock")
		entries = append(entries, GeneratorEntry{Name: "mock", Generator: NewGenerator(NewMockProvider(0), DefaultGenerationModel("mock"))})
	}
	logger.Info("generation provider resolved", zap.String("provider", entries[0].Name), zap.Int("entries", len(entries)))
	if len(entries) == 1 {
		return entries[0].Generator
	}
	return NewGroupGenerator(entries)
}

// EmbedderWrapper decorates a single provider's embedder, e.g. with a cache.
type EmbedderWrapper func(IEmbedder) IEmbedder

// ResolveEmbedder builds the configured embedder and its fallbacks once. The
// mock embedder always closes the chain so embedding never fails outright.
// Wrappers apply to every entry on its own, in order, so a cache keyed by
// model name only ever holds vectors that model produced.
func ResolveEmbedder(ctx context.Context, cfg config.EmbeddingConfig, wraps ...EmbedderWrapper) IEmbedder {
	logger := logutil.GetLogger(ctx)
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	attempts := append([]config.ProviderConfig{cfg.ProviderConfig}, cfg.Fallback...)
	var entries []EmbedderEntry
	hasMock := false
	for i, attempt := range attempts {
		p, err := NewProvider(attempt.Provider, withDimension(attempt.Data, dim))
		if err != nil {
			logger.Warn("embedding provider unavailable", zap.Int("index", i), zap.String("provider", attempt.Provider), zap.Error(err))
			continue
		}
		model := attempt.Model
		if model == "" {
			model = DefaultEmbeddingModel(attempt.Provider)
		}
		if p.Name() == "mock" {
			hasMock = true
		}
		entries = append(entries, EmbedderEntry{Name: p.Name(), Embedder: NewEmbedder(p, model, dim)})
	}
	if !hasMock {
		entries = append(entries, EmbedderEntry{Name: "mock", Embedder: NewEmbedder(NewMockProvider(dim), DefaultEmbeddingModel("mock"), dim)})
	}
	for i := range entries {
		for _, wrap := range wraps {
			entries[i].Embedder = wrap(entries[i].Embedder)
		}
	}
	logger.Info("embedding provider resolved", zap.String("provider", entries[0].Name), zap.Int("dimension", dim), zap.Int("entries", len(entries)))
	if len(entries) == 1 {
		return entries[0].Embedder
	}
	return NewGroupEmbedder(entries)
}

func withDimension(data interface{}, dim int) map[string]interface{} {
	out := map[string]interface{}{}
	_ = decodeConfig(data, &out)
	out["dimension"] = dim
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
