package parser

import (
	"context"
	"strings"
)

type textParser struct{}

func NewTextParser() Parser {
	return textParser{}
}

func (textParser) Name() string {
	return "text"
}

func (textParser) Extensions() []string {
	return []string{".txt", ".text"}
}

// Parse drops invalid utf-8 sequences and a leading byte order mark.
func (textParser) Parse(_ context.Context, data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")
	return strings.TrimPrefix(text, "\ufeff"), nil
}
