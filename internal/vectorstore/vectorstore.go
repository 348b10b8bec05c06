package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/metrics"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// VectorStore is the capability set shared by every store variant. None of
// its methods report backend failures: they degrade to false, empty or absent.
//
// Metadata is stored as JSON by every backend, so documents read back carry
// JSON value types: numbers are float64, arrays []interface{} and objects
// map[string]interface{}. Strings and bools come back unchanged.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []*model.VectorDocument) bool
	SimilaritySearch(ctx context.Context, query []float32, k int, filter map[string]interface{}) []*model.VectorDocument
	DeleteDocument(ctx context.Context, documentID string) bool
	GetDocument(ctx context.Context, documentID string) (*model.VectorDocument, bool)
}

// Backend is a storage engine. Unlike VectorStore it reports every failure.
type Backend interface {
	Name() string
	// Put upserts docs by (document_id, chunk_id).
	Put(ctx context.Context, docs []*model.VectorDocument) error
	// Scan visits every stored document in a stable enumeration order.
	Scan(ctx context.Context, fn func(doc *model.VectorDocument) error) error
	Delete(ctx context.Context, documentID string) error
	// DeleteStaleChunks removes the chunks of documentID whose chunk id is
	// not in keep.
	DeleteStaleChunks(ctx context.Context, documentID string, keep []string) error
	Get(ctx context.Context, documentID string) (*model.VectorDocument, bool, error)
	Count(ctx context.Context) (int, error)
}

// Replacer swaps the chunks of a document without a window in which the
// document is missing.
type Replacer interface {
	ReplaceDocument(ctx context.Context, documentID string, docs []*model.VectorDocument) bool
}

// Store turns a Backend into a VectorStore.
type Store struct {
	backend Backend
}

var (
	_ VectorStore = (*Store)(nil)
	_ Replacer    = (*Store)(nil)
)

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Name() string {
	return s.backend.Name()
}

func (s *Store) AddDocuments(ctx context.Context, docs []*model.VectorDocument) bool {
	err := s.guard(func() error {
		if err := validateDocuments(docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		return s.backend.Put(ctx, docs)
	})
	if err != nil {
		s.fail(ctx, "add", err, zap.Int("count", len(docs)))
		return false
	}
	logutil.GetLogger(ctx).Debug("documents added", zap.String("backend", s.Name()), zap.Int("count", len(docs)))
	return true
}

func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int, filter map[string]interface{}) []*model.VectorDocument {
	if k <= 0 {
		return []*model.VectorDocument{}
	}
	queryNorm := norm(query)
	if queryNorm == 0 || !isFinite(queryNorm) {
		return []*model.VectorDocument{}
	}
	var candidates []scored
	mismatched := 0
	err := s.guard(func() error {
		return s.backend.Scan(ctx, func(doc *model.VectorDocument) error {
			if !MatchFilter(doc.Metadata, filter) {
				return nil
			}
			if len(doc.Embedding) != len(query) {
				mismatched++
				return nil
			}
			score, ok := cosine(query, queryNorm, doc.Embedding)
			if !ok {
				return nil
			}
			candidates = append(candidates, scored{doc: doc, score: score})
			return nil
		})
	})
	if err != nil {
		s.fail(ctx, "search", err, zap.Int("k", k))
		return []*model.VectorDocument{}
	}
	if mismatched > 0 {
		logutil.GetLogger(ctx).Warn("skip documents with mismatched embedding dimension",
			zap.String("backend", s.Name()), zap.Int("count", mismatched), zap.Int("dimension", len(query)))
	}
	// equal scores keep enumeration order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]*model.VectorDocument, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.doc.Clone())
	}
	return out
}

// DeleteDocument removes every chunk of documentID. Deleting an unknown
// document succeeds.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) bool {
	err := s.guard(func() error {
		return s.backend.Delete(ctx, documentID)
	})
	if err != nil {
		s.fail(ctx, "delete", err, zap.String("document_id", documentID))
		return false
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("backend", s.Name()), zap.String("document_id", documentID))
	return true
}

// ReplaceDocument upserts docs and only then drops the chunks of documentID
// that docs no longer contain. When the upsert fails the previous chunks are
// left in place.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, docs []*model.VectorDocument) bool {
	err := s.guard(func() error {
		if err := validateDocuments(docs); err != nil {
			return err
		}
		keep := make([]string, 0, len(docs))
		for _, doc := range docs {
			if doc.DocumentID != documentID {
				return fmt.Errorf("%w: chunk %s does not belong to %s", appErr.ErrInvalid, doc.Key(), documentID)
			}
			keep = append(keep, doc.ChunkID)
		}
		if len(docs) > 0 {
			if err := s.backend.Put(ctx, docs); err != nil {
				return err
			}
		}
		return s.backend.DeleteStaleChunks(ctx, documentID, keep)
	})
	if err != nil {
		s.fail(ctx, "replace", err, zap.String("document_id", documentID), zap.Int("count", len(docs)))
		return false
	}
	logutil.GetLogger(ctx).Info("document replaced", zap.String("backend", s.Name()),
		zap.String("document_id", documentID), zap.Int("count", len(docs)))
	return true
}

// GetDocument returns any one chunk of documentID.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*model.VectorDocument, bool) {
	var (
		doc *model.VectorDocument
		ok  bool
	)
	err := s.guard(func() error {
		var err error
		doc, ok, err = s.backend.Get(ctx, documentID)
		return err
	})
	if err != nil {
		s.fail(ctx, "get", err, zap.String("document_id", documentID))
		return nil, false
	}
	if !ok || doc == nil {
		return nil, false
	}
	return doc.Clone(), true
}

// Count returns the number of stored chunks, 0 when the backend fails.
func (s *Store) Count(ctx context.Context) int {
	var n int
	err := s.guard(func() error {
		var err error
		n, err = s.backend.Count(ctx)
		return err
	})
	if err != nil {
		s.fail(ctx, "count", err)
		return 0
	}
	return n
}

func (s *Store) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", appErr.ErrVectorStore, r)
		}
	}()
	return fn()
}

func (s *Store) fail(ctx context.Context, op string, err error, fields ...zap.Field) {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	fields = append(fields, zap.String("backend", s.Name()), zap.String("op", op), zap.Error(err))
	logutil.GetLogger(ctx).Error("vector store operation failed", fields...)
}

type scored struct {
	doc   *model.VectorDocument
	score float64
}

func validateDocuments(docs []*model.VectorDocument) error {
	for i, doc := range docs {
		if doc == nil {
			return fmt.Errorf("%w: document %d is nil", appErr.ErrInvalid, i)
		}
		if doc.DocumentID == "" || doc.ChunkID == "" {
			return fmt.Errorf("%w: document %d has empty document_id or chunk_id", appErr.ErrInvalid, i)
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("%w: document %s has no embedding", appErr.ErrInvalid, doc.Key())
		}
	}
	return nil
}
