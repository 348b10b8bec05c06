package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 500, cfg.Chunker.ChunkSize)
	require.Equal(t, 50, cfg.Chunker.Overlap())
	require.Equal(t, "\n\n", cfg.Chunker.Separator)
	require.Equal(t, "mock", cfg.Embedding.Provider)
	require.Equal(t, 384, cfg.Embedding.Dimension)
	require.Equal(t, "mock", cfg.Generation.Provider)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, "memory", cfg.VectorStore.Type)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
port: 9000
chunker:
  chunk_size: 200
  chunk_overlap: 0
embedding:
  provider: openai
  model: text-embedding-3-small
  data:
    api_key: sk-test
vector_store:
  type: dynamodb
  data:
    table: rag-documents
    region: us-east-1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 200, cfg.Chunker.ChunkSize)
	require.Equal(t, 0, cfg.Chunker.Overlap())
	require.Equal(t, "openai", cfg.Embedding.Provider)
	require.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	data, ok := cfg.Embedding.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "sk-test", data["api_key"])
	require.Equal(t, "dynamodb", cfg.VectorStore.Type)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "overlap not below size", content: `{"chunker":{"chunk_size":100,"chunk_overlap":100}}`},
		{name: "unknown store", content: `{"vector_store":{"type":"faiss"}}`},
		{name: "sql without database", content: `{"vector_store":{"type":"sql"}}`},
		{name: "cache db without driver", content: `{"embedding":{"cache":{"db":true}}}`},
		{name: "unknown source", content: `{"source":{"type":"ftp"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tc.content))
			require.Error(t, err)
			require.True(t, appErr.IsConfiguration(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "memory", cfg.VectorStore.Type)
	require.Equal(t, 50, cfg.Chunker.Overlap())
}
