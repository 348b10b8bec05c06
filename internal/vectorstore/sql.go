package vectorstore

import (
	"context"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/repo"
)

const BackendSQL = "sql"

type sqlBackend struct {
	repo *repo.VectorDocumentRepo
}

// NewSQLBackend stores documents in the vector_documents table.
func NewSQLBackend(r *repo.VectorDocumentRepo) Backend {
	return &sqlBackend{repo: r}
}

func (s *sqlBackend) Name() string {
	return BackendSQL
}

func (s *sqlBackend) Put(ctx context.Context, docs []*model.VectorDocument) error {
	return s.repo.Upsert(ctx, docs)
}

func (s *sqlBackend) Scan(ctx context.Context, fn func(doc *model.VectorDocument) error) error {
	return s.repo.Scan(ctx, fn)
}

func (s *sqlBackend) Delete(ctx context.Context, documentID string) error {
	_, err := s.repo.DeleteByDocument(ctx, documentID)
	return err
}

func (s *sqlBackend) DeleteStaleChunks(ctx context.Context, documentID string, keep []string) error {
	_, err := s.repo.DeleteChunksExcept(ctx, documentID, keep)
	return err
}

func (s *sqlBackend) Get(ctx context.Context, documentID string) (*model.VectorDocument, bool, error) {
	return s.repo.GetFirst(ctx, documentID)
}

func (s *sqlBackend) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
