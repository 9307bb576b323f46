package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateFromExecution creates a one-cell document holding query and a link
// to the execution that ran it.
func (s *SQLiteStore) CreateFromExecution(ctx context.Context, executionID, engineID, query string) (string, error) {
	if _, err := s.GetExecution(ctx, executionID); err != nil {
		return "", err
	}
	return s.createDoc(ctx, &DataCell{Type: CellQuery, Context: query, EngineID: engineID, ExecutionID: executionID})
}

// CreateFromText creates a one-cell document holding query.
func (s *SQLiteStore) CreateFromText(ctx context.Context, query, engineID string) (string, error) {
	return s.createDoc(ctx, &DataCell{Type: CellQuery, Context: query, EngineID: engineID})
}

func (s *SQLiteStore) createDoc(ctx context.Context, cells ...*DataCell) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docID := generateID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO data_docs (id, title, created_at) VALUES (?, ?, ?)`,
		docID, "", time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("failed to create data doc: %w", err)
	}

	for i, cell := range cells {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO data_cells (id, doc_id, position, cell_type, context, engine_id, execution_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			generateID(), docID, i, cell.Type, cell.Context, cell.EngineID, nullString(cell.ExecutionID),
		); err != nil {
			return "", fmt.Errorf("failed to create data cell: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit data doc: %w", err)
	}

	s.logger.Debug("created data doc", slog.String("id", docID), slog.Int("cells", len(cells)))
	return docID, nil
}

// GetDataDoc retrieves a document and its cells in position order.
func (s *SQLiteStore) GetDataDoc(ctx context.Context, id string) (*DataDoc, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	doc := &DataDoc{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM data_docs WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data doc %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data doc: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, cell_type, context, engine_id, execution_id
		 FROM data_cells WHERE doc_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get data cells: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		cell := &DataCell{}
		var executionID sql.NullString
		if err := rows.Scan(&cell.ID, &cell.Position, &cell.Type, &cell.Context, &cell.EngineID, &executionID); err != nil {
			return nil, fmt.Errorf("failed to scan data cell: %w", err)
		}
		cell.ExecutionID = executionID.String
		doc.Cells = append(doc.Cells, cell)
	}
	return doc, rows.Err()
}
