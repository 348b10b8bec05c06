package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

func TestRegistryParseText(t *testing.T) {
	r := Default()
	text, err := r.Parse(context.Background(), "notes.TXT", []byte("\ufeffhello\xffworld"))
	require.NoError(t, err)
	require.Equal(t, "helloworld", text)
}

func TestRegistryParseMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\nNext line.\n\n- item one\n- item two\n\n```go\nfmt.Println(1)\n```\n"
	text, err := Default().Parse(context.Background(), "doc.md", []byte(src))
	require.NoError(t, err)
	require.Equal(t, "Title\n\nSome emphasis and code.\nNext line.\n\nitem one\n\nitem two\n\nfmt.Println(1)", text)
}

func TestRegistryUnsupported(t *testing.T) {
	r := Default()
	require.False(t, r.Supports("image.png"))
	_, err := r.Parse(context.Background(), "image.png", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.True(t, appErr.IsIngestion(err))
}

func TestRegistryBrokenPDF(t *testing.T) {
	_, err := Default().Parse(context.Background(), "broken.pdf", []byte("not a pdf"))
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrDocumentParsing)
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.pdf":  "application/pdf",
		"a.txt":  "text/plain",
		"a.MD":   "text/markdown",
		"a.docx": "application/octet-stream",
		"noext":  "application/octet-stream",
	}
	for name, want := range cases {
		require.Equal(t, want, ContentType(name), name)
	}
}
