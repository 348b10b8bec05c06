package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// firstSuccess calls fn for each entry in order and returns the first
// result without error. It gives up early once ctx is done.
func firstSuccess[T any](ctx context.Context, kind string, names []string, fn func(i int) (T, error)) (T, error) {
	var zero T
	var errs []error
	for i, name := range names {
		res, err := fn(i)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		logutil.GetLogger(ctx).Warn(kind+" failed", zap.Int("index", i), zap.String("provider", name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return zero, ErrUnavailable
	}
	return zero, errors.Join(errs...)
}

type groupGenerator struct {
	items []GeneratorEntry
	names []string
}

// NewGroupGenerator tries each entry in order until one succeeds.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, item := range items {
		if item.Generator != nil {
			g.items = append(g.items, item)
			g.names = append(g.names, item.Name)
		}
	}
	if len(g.items) == 0 {
		return nil
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return firstSuccess(ctx, "generator", g.names, func(i int) (string, error) {
		return g.items[i].Generator.Generate(ctx, prompt)
	})
}

func (g *groupGenerator) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		names = append(names, item.Generator.ModelName())
	}
	return strings.Join(names, "|")
}

type groupEmbedder struct {
	items []EmbedderEntry
	names []string
}

// NewGroupEmbedder tries each entry in order until one succeeds. Entries
// must share one dimension; the first entry's is reported.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, item := range items {
		if item.Embedder != nil {
			g.items = append(g.items, item)
			g.names = append(g.names, item.Name)
		}
	}
	if len(g.items) == 0 {
		return nil
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return firstSuccess(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		return g.items[i].Embedder.Embed(ctx, text, taskType)
	})
}

// ModelName names the primary entry even when a fallback answered, so
// caches belong on the entries, not on the group.
func (g *groupEmbedder) ModelName() string {
	return g.items[0].Embedder.ModelName()
}

func (g *groupEmbedder) Dimension() int {
	return g.items[0].Embedder.Dimension()
}
