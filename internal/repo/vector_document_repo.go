package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
)

const vectorDocumentTable = "vector_documents"

var vectorDocumentFields = []string{"document_id", "chunk_id", "text", "embedding", "metadata"}

type VectorDocumentRepo struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewVectorDocumentRepo(db *sql.DB, driver string) *VectorDocumentRepo {
	return &VectorDocumentRepo{db: db, driver: driver, now: time.Now}
}

// Upsert writes docs in one transaction. A replaced row keeps its original
// position in enumeration order.
func (r *VectorDocumentRepo) Upsert(ctx context.Context, docs []*model.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	query, _ := dbutil.Finalize(r.driver, `
		INSERT INTO vector_documents (document_id, chunk_id, seq, text, embedding, metadata, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, chunk_id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			mtime = EXCLUDED.mtime
	`, nil)
	var maxSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM vector_documents`).Scan(&maxSeq); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := r.now()
	for i, doc := range docs {
		meta, err := json.Marshal(metadataOrEmpty(doc.Metadata))
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", doc.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.DocumentID,
			doc.ChunkID,
			maxSeq+int64(i)+1,
			doc.Text,
			pgvector.NewVector(doc.Embedding),
			string(meta),
			now.Unix(),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", doc.Key(), err)
		}
	}
	return tx.Commit()
}

// Scan calls fn for every stored document in insertion order.
func (r *VectorDocumentRepo) Scan(ctx context.Context, fn func(doc *model.VectorDocument) error) error {
	where := map[string]interface{}{
		"_orderby": "seq asc, document_id asc, chunk_id asc",
	}
	sqlStr, args, err := builder.BuildSelect(vectorDocumentTable, where, vectorDocumentFields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.driver, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanVectorDocument(rows)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *VectorDocumentRepo) GetFirst(ctx context.Context, documentID string) (*model.VectorDocument, bool, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"_orderby":    "seq asc, chunk_id asc",
		"_limit":      []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect(vectorDocumentTable, where, vectorDocumentFields)
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(r.driver, sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanVectorDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return doc, true, nil
}

func (r *VectorDocumentRepo) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	where := map[string]interface{}{
		"document_id": documentID,
	}
	sqlStr, args, err := builder.BuildDelete(vectorDocumentTable, where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.driver, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteChunksExcept removes the chunks of documentID not listed in keep.
// An empty keep removes the whole document.
func (r *VectorDocumentRepo) DeleteChunksExcept(ctx context.Context, documentID string, keep []string) (int64, error) {
	if len(keep) == 0 {
		return r.DeleteByDocument(ctx, documentID)
	}
	chunkIDs := make([]interface{}, 0, len(keep))
	for _, id := range keep {
		chunkIDs = append(chunkIDs, id)
	}
	where := map[string]interface{}{
		"document_id":     documentID,
		"chunk_id not in": chunkIDs,
	}
	sqlStr, args, err := builder.BuildDelete(vectorDocumentTable, where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.driver, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *VectorDocumentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_documents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVectorDocument(row rowScanner) (*model.VectorDocument, error) {
	var doc model.VectorDocument
	var embedding pgvector.Vector
	var meta string
	if err := row.Scan(&doc.DocumentID, &doc.ChunkID, &doc.Text, &embedding, &meta); err != nil {
		return nil, err
	}
	doc.Embedding = embedding.Slice()
	doc.Metadata = map[string]interface{}{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", doc.Key(), err)
		}
	}
	return &doc, nil
}

func metadataOrEmpty(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return map[string]interface{}{}
	}
	return meta
}
