package parser

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type markdownParser struct {
	md goldmark.Markdown
}

func NewMarkdownParser() Parser {
	return &markdownParser{md: goldmark.New()}
}

func (p *markdownParser) Name() string {
	return "markdown"
}

func (p *markdownParser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Parse renders the markdown AST to plain text, one blank line between blocks.
func (p *markdownParser) Parse(_ context.Context, data []byte) (string, error) {
	data = []byte(strings.ToValidUTF8(string(data), ""))
	reader := text.NewReader(data)
	doc := p.md.Parser().Parse(reader)
	src := reader.Source()

	var blocks []string
	var sb strings.Builder
	flush := func() {
		block := strings.TrimSpace(sb.String())
		sb.Reset()
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					line := lines.At(i)
					sb.Write(line.Value(src))
				}
				return ast.WalkSkipChildren, nil
			}
		}
		if !entering && n.Type() == ast.TypeBlock {
			flush()
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	flush()
	return strings.Join(blocks, "\n\n"), nil
}
