package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/metrics"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/parser"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/preprocess"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

// DocumentEmbedder embeds chunk texts, one vector per text.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Service struct {
	parsers   *parser.Registry
	cleaner   *preprocess.Cleaner
	embedder  DocumentEmbedder
	store     vectorstore.VectorStore
	source    filestore.Store
	chunkSize int
	overlap   int
	separator string
	maxSize   int64
}

type Option func(*Service)

// WithSource enables ingestion from, and persistence of uploads into, src.
func WithSource(src filestore.Store) Option {
	return func(s *Service) {
		s.source = src
	}
}

func WithChunking(size, overlap int, separator string) Option {
	return func(s *Service) {
		s.chunkSize = size
		s.overlap = overlap
		s.separator = separator
	}
}

// WithMaxSize rejects documents larger than n bytes. Zero disables the check.
func WithMaxSize(n int64) Option {
	return func(s *Service) {
		s.maxSize = n
	}
}

func WithCleaner(c *preprocess.Cleaner) Option {
	return func(s *Service) {
		if c != nil {
			s.cleaner = c
		}
	}
}

func WithParsers(r *parser.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.parsers = r
		}
	}
}

func NewService(embedder DocumentEmbedder, store vectorstore.VectorStore, opts ...Option) *Service {
	s := &Service{
		parsers:   parser.Default(),
		cleaner:   preprocess.NewCleaner(),
		embedder:  embedder,
		store:     store,
		chunkSize: preprocess.DefaultChunkSize,
		overlap:   preprocess.DefaultChunkOverlap,
		separator: preprocess.DefaultSeparator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) HasSource() bool {
	return s.source != nil
}

// Supports reports whether filename has a parser.
func (s *Service) Supports(filename string) bool {
	return s.parsers.Supports(filename)
}

type Request struct {
	Filename string
	Data     []byte
	// ChunkSize and Overlap override the service defaults when set.
	ChunkSize int
	Overlap   *int
	Metadata  map[string]interface{}
	// Persist also writes the raw upload to the source store.
	Persist bool
}

// Ingest parses, cleans, chunks, embeds and stores one document. The
// filename is the document id; chunks stored earlier under it are replaced
// once the new ones are written, and survive a failed write.
func (s *Service) Ingest(ctx context.Context, req *Request) (*model.IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", req.Filename))
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	if s.maxSize > 0 && int64(len(req.Data)) > s.maxSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", appErr.ErrInvalid, s.maxSize)
	}
	chunker, err := s.chunker(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	logger.Info("ingestion started", zap.Int("bytes", len(req.Data)))

	text, err := s.parsers.Parse(ctx, req.Filename, req.Data)
	if err != nil {
		return nil, err
	}
	cleaned := s.cleaner.Clean(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: %s has no text", appErr.ErrDocumentParsing, req.Filename)
	}

	meta := model.CopyMetadata(req.Metadata)
	if _, ok := meta["source"]; !ok {
		meta["source"] = req.Filename
	}
	meta["document_id"] = req.Filename
	chunks := chunker.Chunk(ctx, cleaned, meta)
	logger.Info("text chunked", zap.Int("chunks", len(chunks)))

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", appErr.ErrEmbedding, len(vectors), len(chunks))
	}

	docs := make([]*model.VectorDocument, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, &model.VectorDocument{
			DocumentID: req.Filename,
			ChunkID:    c.ChunkID,
			Text:       c.Text,
			Embedding:  vectors[i],
			Metadata:   c.Metadata,
		})
	}
	if !s.replace(ctx, req.Filename, docs) {
		return nil, fmt.Errorf("%w: store chunks of %s", appErr.ErrVectorStore, req.Filename)
	}
	metrics.IngestedChunksTotal.Add(float64(len(docs)))

	if req.Persist && s.source != nil {
		if err := s.source.Save(ctx, req.Filename, req.Data, parser.ContentType(req.Filename)); err != nil {
			logger.Warn("persist upload failed", zap.Error(err))
		}
	}
	logger.Info("ingestion finished", zap.Int("chunks", len(docs)), zap.Duration("cost", time.Since(start)))
	return &model.IngestResult{
		DocumentID: req.Filename,
		NumChunks:  len(chunks),
		Chunks:     texts,
	}, nil
}

// replace stores docs as the only chunks of documentID. Stores that cannot
// replace in place get a plain upsert, which keeps chunks beyond the new count.
func (s *Service) replace(ctx context.Context, documentID string, docs []*model.VectorDocument) bool {
	if r, ok := s.store.(vectorstore.Replacer); ok {
		return r.ReplaceDocument(ctx, documentID, docs)
	}
	return s.store.AddDocuments(ctx, docs)
}

func (s *Service) chunker(req *Request) (*preprocess.Chunker, error) {
	size := s.chunkSize
	if req.ChunkSize > 0 {
		size = req.ChunkSize
	}
	overlap := s.overlap
	if req.Overlap != nil {
		overlap = *req.Overlap
	}
	return preprocess.NewChunker(
		preprocess.WithChunkSize(size),
		preprocess.WithChunkOverlap(overlap),
		preprocess.WithSeparator(s.separator),
	)
}

// IngestFromSource reads key from the source store and ingests it with the
// object's attributes merged into every chunk's metadata.
func (s *Service) IngestFromSource(ctx context.Context, key string, extra map[string]interface{}) (*model.IngestResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no source store configured", appErr.ErrUnavailable)
	}
	info, err := s.source.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := s.source.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("source document downloaded",
		zap.String("source", s.source.Type()), zap.String("key", key), zap.Int("bytes", len(data)))
	meta := SourceMetadata(info)
	for k, v := range extra {
		meta[k] = v
	}
	return s.Ingest(ctx, &Request{Filename: key, Data: data, Metadata: meta})
}

// SourceMetadata flattens object attributes into chunk metadata. User
// defined metadata is merged last.
func SourceMetadata(info *filestore.ObjectInfo) map[string]interface{} {
	contentType := info.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	meta := map[string]interface{}{
		"s3_key":         info.Key,
		"content_type":   contentType,
		"content_length": info.Size,
		"etag":           info.ETag,
	}
	if !info.LastModified.IsZero() {
		meta["last_modified"] = info.LastModified.Format(time.RFC3339)
	}
	for k, v := range info.Metadata {
		meta[k] = v
	}
	return meta
}

// Delete removes every chunk of documentID.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", appErr.ErrInvalid)
	}
	if !s.store.DeleteDocument(ctx, documentID) {
		return fmt.Errorf("%w: delete %s", appErr.ErrVectorStore, documentID)
	}
	return nil
}
