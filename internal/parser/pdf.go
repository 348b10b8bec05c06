package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type pdfParser struct{}

func NewPDFParser() Parser {
	return pdfParser{}
}

func (pdfParser) Name() string {
	return "pdf"
}

func (pdfParser) Extensions() []string {
	return []string{".pdf"}
}

// Parse joins the plain text of every readable page. Unreadable pages are
// skipped; a document without any text is an error.
func (pdfParser) Parse(ctx context.Context, data []byte) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skip unreadable pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	content = strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("pdf has no extractable text")
	}
	return content, nil
}
