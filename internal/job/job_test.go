package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/model"
)

type fakeCleaner struct {
	cutoff int64
	err    error
}

func (f *fakeCleaner) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name      string
		retention time.Duration
		want      int64
	}{
		{name: "configured", retention: time.Hour, want: now.Add(-time.Hour).Unix()},
		{name: "default", retention: 0, want: now.Add(-defaultCacheRetention).Unix()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeCleaner{}
			job := NewEmbeddingCacheCleanupJob(repo, tt.retention)
			job.now = func() time.Time { return now }
			require.NoError(t, job.Run(context.Background()))
			require.Equal(t, tt.want, repo.cutoff)
		})
	}

	failing := NewEmbeddingCacheCleanupJob(&fakeCleaner{err: errors.New("boom")}, time.Hour)
	require.Error(t, failing.Run(context.Background()))
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, time.Hour).Run(context.Background()))
}

type fakeIngester struct {
	calls   []string
	deleted []string
	fail    map[string]bool
}

func (f *fakeIngester) Delete(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	if f.fail[documentID] {
		return errors.New("delete failed")
	}
	return nil
}

func (f *fakeIngester) Supports(filename string) bool {
	return strings.HasSuffix(filename, ".txt") || strings.HasSuffix(filename, ".md")
}

func (f *fakeIngester) IngestFromSource(_ context.Context, key string, _ map[string]interface{}) (*model.IngestResult, error) {
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return nil, errors.New("ingest failed")
	}
	return &model.IngestResult{DocumentID: key, NumChunks: 1}, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSourceSyncJob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "docs/a.txt", "alpha")
	writeFile(t, dir, "docs/b.md", "# beta")
	writeFile(t, dir, "docs/image.bin", "binary")
	writeFile(t, dir, "other/c.txt", "gamma")

	ingester := &fakeIngester{fail: map[string]bool{"docs/b.md": true}}
	job := NewSourceSyncJob(filestore.NewLocalStore(dir), ingester, "docs/")
	require.Equal(t, "source_sync", job.Name())

	err := job.Run(ctx)
	require.Error(t, err)
	require.ElementsMatch(t, []string{"docs/a.txt", "docs/b.md"}, ingester.calls)

	ingester.calls = nil
	ingester.fail = nil
	require.NoError(t, job.Run(ctx))
	require.Equal(t, []string{"docs/b.md"}, ingester.calls)

	ingester.calls = nil
	require.NoError(t, job.Run(ctx))
	require.Empty(t, ingester.calls)

	writeFile(t, dir, "docs/a.txt", "alpha, revised")
	require.NoError(t, job.Run(ctx))
	require.Equal(t, []string{"docs/a.txt"}, ingester.calls)
}

func TestSourceSyncJobDropsVanishedObjects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "docs/a.txt", "alpha")
	writeFile(t, dir, "docs/b.txt", "beta")

	ingester := &fakeIngester{}
	job := NewSourceSyncJob(filestore.NewLocalStore(dir), ingester, "docs/")
	require.NoError(t, job.Run(ctx))
	require.Empty(t, ingester.deleted)

	require.NoError(t, os.Remove(filepath.Join(dir, "docs", "a.txt")))
	ingester.fail = map[string]bool{"docs/a.txt": true}
	require.Error(t, job.Run(ctx))
	require.Equal(t, []string{"docs/a.txt"}, ingester.deleted)

	ingester.fail = nil
	ingester.deleted = nil
	require.NoError(t, job.Run(ctx))
	require.Equal(t, []string{"docs/a.txt"}, ingester.deleted)

	ingester.deleted = nil
	ingester.calls = nil
	require.NoError(t, job.Run(ctx))
	require.Empty(t, ingester.deleted)
	require.Empty(t, ingester.calls)
}

func TestSourceSyncJobWithoutSource(t *testing.T) {
	require.NoError(t, NewSourceSyncJob(nil, &fakeIngester{}, "").Run(context.Background()))
}
