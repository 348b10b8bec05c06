package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	name  string
	out   string
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.out, s.err
}

func (s *stubGenerator) ModelName() string { return s.name }

func TestGroupGenerator(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		entries []*stubGenerator
		want    string
		wantErr bool
	}{
		{name: "first wins", entries: []*stubGenerator{{name: "a", out: "A"}, {name: "b", out: "B"}}, want: "A"},
		{name: "falls through", entries: []*stubGenerator{{name: "a", err: errors.New("down")}, {name: "b", out: "B"}}, want: "B"},
		{name: "all fail", entries: []*stubGenerator{{name: "a", err: errors.New("x")}, {name: "b", err: errors.New("y")}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []GeneratorEntry
			for _, e := range tt.entries {
				items = append(items, GeneratorEntry{Name: e.name, Generator: e})
			}
			g := NewGroupGenerator(items)
			require.Equal(t, "a|b", g.ModelName())
			out, err := g.Generate(ctx, "p")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}
}

func TestGroupGeneratorStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := &stubGenerator{name: "a", err: context.Canceled}
	second := &stubGenerator{name: "b", out: "B"}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: first}, {Name: "b", Generator: second}})
	_, err := g.Generate(ctx, "p")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, second.calls)
}

func TestGroupSkipsNilEntries(t *testing.T) {
	require.Nil(t, NewGroupGenerator([]GeneratorEntry{{Name: "a"}}))
	require.Nil(t, NewGroupEmbedder(nil))

	e := NewGroupEmbedder([]EmbedderEntry{
		{Name: "none"},
		{Name: "mock", Embedder: NewEmbedder(NewMockProvider(8), "mock-embedding", 8)},
	})
	require.Equal(t, 8, e.Dimension())
	values, err := e.Embed(context.Background(), "hello", TaskQuery)
	require.NoError(t, err)
	require.Len(t, values, 8)
}
