package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// Parser extracts plain text from the raw bytes of one file format.
type Parser interface {
	Name() string
	Extensions() []string
	Parse(ctx context.Context, data []byte) (string, error)
}

type Registry struct {
	byExt map[string]Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Default knows plain text, markdown and pdf.
func Default() *Registry {
	return NewRegistry(NewTextParser(), NewMarkdownParser(), NewPDFParser())
}

func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}
	for _, ext := range p.Extensions() {
		r.byExt[normalizeExt(ext)] = p
	}
}

func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[normalizeExt(filepath.Ext(filename))]
	return ok
}

func (r *Registry) Parse(ctx context.Context, filename string, data []byte) (string, error) {
	ext := normalizeExt(filepath.Ext(filename))
	p, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", appErr.ErrUnsupportedFormat, ext)
	}
	text, err := p.Parse(ctx, data)
	if err != nil {
		return "", appErr.Wrap(appErr.ErrDocumentParsing, fmt.Errorf("parse %s: %w", filename, err))
	}
	logutil.GetLogger(ctx).Info("document parsed",
		zap.String("filename", filename),
		zap.String("parser", p.Name()),
		zap.Int("chars", utf8.RuneCountInString(text)),
	)
	return text, nil
}

var contentTypes = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

func ContentType(filename string) string {
	if ct, ok := contentTypes[normalizeExt(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
