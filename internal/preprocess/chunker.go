package preprocess

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultSeparator    = "\n\n"

	defaultDocumentID = "doc"
)

type Chunker struct {
	size      int
	overlap   int
	separator string
}

type ChunkerOption func(*Chunker)

func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		c.size = size
	}
}

func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

func WithSeparator(sep string) ChunkerOption {
	return func(c *Chunker) {
		c.separator = sep
	}
}

// NewChunker validates the window so the fixed-size path always advances.
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{
		size:      DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		separator: DefaultSeparator,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", appErr.ErrChunking, c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: chunk_overlap must not be negative, got %d", appErr.ErrChunking, c.overlap)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: chunk_overlap %d must be less than chunk_size %d", appErr.ErrChunking, c.overlap, c.size)
	}
	return c, nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits text into ordered chunks. Separator-aware accumulation is used
// when the separator occurs in text, fixed-size windows otherwise.
func (c *Chunker) Chunk(ctx context.Context, text string, metadata map[string]interface{}) []model.Chunk {
	if text == "" {
		return nil
	}
	docID := defaultDocumentID
	if v, ok := metadata["document_id"]; ok {
		if s := fmt.Sprint(v); s != "" {
			docID = s
		}
	}
	var chunks []model.Chunk
	mode := "size"
	if c.separator != "" && strings.Contains(text, c.separator) {
		mode = "separator"
		chunks = c.chunkBySeparator(text, docID, metadata)
	} else {
		chunks = c.chunkBySize(text, docID, metadata)
	}
	logutil.GetLogger(ctx).Debug("text chunked",
		zap.String("document_id", docID),
		zap.String("mode", mode),
		zap.Int("chars", runeLen(text)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// chunkBySeparator advances start by len(previous)-overlap. Chunks follow
// natural boundaries, so the offsets approximate the overlap rather than
// locating it exactly.
func (c *Chunker) chunkBySeparator(text, docID string, metadata map[string]interface{}) []model.Chunk {
	var chunks []model.Chunk
	current := ""
	currentStart := 0
	flush := func() {
		n := runeLen(current)
		chunks = append(chunks, newChunk(current, docID, len(chunks), currentStart, currentStart+n, metadata))
		currentStart += n - c.overlap
		if currentStart < 0 {
			currentStart = 0
		}
	}
	for _, part := range strings.Split(text, c.separator) {
		potential := part
		if current != "" {
			potential = current + c.separator + part
		}
		if runeLen(potential) <= c.size {
			current = potential
			continue
		}
		if current != "" {
			flush()
		}
		current = part
	}
	if current != "" {
		flush()
	}
	return chunks
}

// chunkBySize walks fixed windows, backing off to the last '.' or '\n' when
// that keeps more than half a window.
func (c *Chunker) chunkBySize(text, docID string, metadata map[string]interface{}) []model.Chunk {
	runes := []rune(text)
	total := len(runes)
	var chunks []model.Chunk
	start := 0
	for start < total {
		end := start + c.size
		if end > total {
			end = total
		}
		if end < total {
			lastBreak := lastBreakIndex(runes[start:end])
			if 2*lastBreak > c.size {
				end = start + lastBreak + 1
			}
		}
		chunks = append(chunks, newChunk(string(runes[start:end]), docID, len(chunks), start, end, metadata))
		if end >= total {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastBreakIndex(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}

func newChunk(text, docID string, index, start, end int, metadata map[string]interface{}) model.Chunk {
	meta := model.CopyMetadata(metadata)
	meta["chunk_index"] = index
	return model.Chunk{
		Text:       text,
		ChunkID:    fmt.Sprintf("%s_chunk_%d", docID, index),
		StartIndex: start,
		EndIndex:   end,
		Metadata:   meta,
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
