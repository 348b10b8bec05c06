package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/config"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(config.SourceConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	require.Equal(t, "local", s.Type())

	require.NoError(t, s.Save(ctx, "docs/a.md", []byte("# A"), "text/markdown"))
	require.NoError(t, s.Save(ctx, "b.txt", []byte("bee"), "text/plain"))

	data, err := s.Read(ctx, "docs/a.md")
	require.NoError(t, err)
	require.Equal(t, "# A", string(data))

	info, err := s.Stat(ctx, "b.txt")
	require.NoError(t, err)
	require.Equal(t, int64(3), info.Size)
	require.Equal(t, "text/plain", info.ContentType)
	require.NotEmpty(t, info.ETag)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "b.txt", all[0].Key)
	require.Equal(t, "docs/a.md", all[1].Key)

	docs, err := s.List(ctx, "docs/")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = s.Read(ctx, "missing.txt")
	require.True(t, appErr.IsNotFound(err))
	_, err = s.Stat(ctx, "missing.txt")
	require.True(t, appErr.IsNotFound(err))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())
	for _, key := range []string{"", "../etc/passwd", "/abs", "a/../../b", `a\b`, "a//b"} {
		_, err := s.Read(ctx, key)
		require.True(t, appErr.IsInvalid(err), key)
		require.True(t, appErr.IsInvalid(s.Save(ctx, key, nil, "")), key)
	}
}

func TestLocalStoreListMissingDir(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	items, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestNewValidation(t *testing.T) {
	_, err := New(config.SourceConfig{})
	require.True(t, appErr.IsConfiguration(err))
	_, err = New(config.SourceConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.True(t, appErr.IsConfiguration(err))
	_, err = New(config.SourceConfig{Type: "local"})
	require.True(t, appErr.IsConfiguration(err))
	_, err = New(config.SourceConfig{Type: "local", Data: map[string]interface{}{}})
	require.True(t, appErr.IsConfiguration(err))
	_, err = New(config.SourceConfig{Type: "s3", Data: map[string]interface{}{"region": "us-east-1"}})
	require.True(t, appErr.IsConfiguration(err))
}

type fakeS3Object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

type fakeS3 struct {
	objects  map[string]*fakeS3Object
	pageSize int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]*fakeS3Object{}, pageSize: 2}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("not found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"abc123"`),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = &fakeS3Object{data: data, contentType: aws.ToString(params.ContentType), modified: time.Unix(1700000000, 0)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(params.Prefix)) && k > aws.ToString(params.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k].data))),
			ETag:         aws.String(`"e-` + k + `"`),
			LastModified: aws.Time(f.objects[k].modified),
		})
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	s := NewS3Store(client, "bucket", "/uploads/")
	require.Equal(t, "s3", s.Type())

	for _, key := range []string{"a.txt", "b.md", "c.pdf", "nested/d.txt"} {
		require.NoError(t, s.Save(ctx, key, []byte("data of "+key), "text/plain"))
	}
	require.Contains(t, client.objects, "uploads/nested/d.txt")
	client.objects["uploads/a.txt"].metadata = map[string]string{"author": "kim"}

	data, err := s.Read(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "data of a.txt", string(data))

	info, err := s.Stat(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "abc123", info.ETag)
	require.Equal(t, int64(len("data of a.txt")), info.Size)
	require.Equal(t, "kim", info.Metadata["author"])
	require.Equal(t, "text/plain", info.ContentType)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	var keys []string
	for _, item := range all {
		keys = append(keys, item.Key)
	}
	require.Equal(t, []string{"a.txt", "b.md", "c.pdf", "nested/d.txt"}, keys)
	require.Equal(t, "e-uploads/a.txt", all[0].ETag)

	nested, err := s.List(ctx, "nested/")
	require.NoError(t, err)
	require.Len(t, nested, 1)

	_, err = s.Read(ctx, "missing")
	require.True(t, appErr.IsNotFound(err))
	_, err = s.Stat(ctx, "missing")
	require.True(t, appErr.IsNotFound(err))
}

func TestLocalStoreReadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o644))
	data, err := NewLocalStore(dir).Read(context.Background(), "x.txt")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}
