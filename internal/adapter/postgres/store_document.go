package postgres

import (
	"context"
	"fmt"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
)

const documentColumns = `id, title, content, doc_type, task_id, created_by, created_at, updated_at`

func scanDocument(row scannable) (document.Document, error) {
	var (
		d         document.Document
		taskID    *string
		createdBy string
	)
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.Type, &taskID, &createdBy,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return document.Document{}, err
	}
	d.TaskID = strOrEmpty(taskID)
	d.CreatedBy = actor.Parse(createdBy)
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, req document.CreateRequest) (*document.Document, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO documents (title, content, doc_type, task_id, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING %s`, documentColumns),
		req.Title, req.Content, string(req.Type), nullIfEmpty(req.TaskID), req.CreatedBy.String())

	d, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns), id)

	d, err := scanDocument(row)
	if err != nil {
		return nil, notFoundWrap(err, "get document %s", id)
	}
	return &d, nil
}

func (s *Store) ListDocumentsByTask(ctx context.Context, taskID string) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE task_id = $1 ORDER BY created_at DESC`, documentColumns),
		taskID)
	if err != nil {
		return nil, fmt.Errorf("list documents by task %s: %w", taskID, err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (s *Store) ListDocumentsByType(ctx context.Context, docType document.Type, limit int) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE doc_type = $1 ORDER BY created_at DESC LIMIT $2`, documentColumns),
		string(docType), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list documents by type %s: %w", docType, err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (s *Store) ListRecentDocuments(ctx context.Context, limit int) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM documents ORDER BY created_at DESC LIMIT $1`, documentColumns), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func collectDocuments(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]document.Document, error) {
	var docs []document.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
