package repository

import (
	"context"
	"database/sql"
)

// DocumentRepo handles documents.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Upsert(ctx context.Context, d Document) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO documents(id, name, source_path, created_at, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 source_path=excluded.source_path,
	 updated_at=CURRENT_TIMESTAMP;
	`, d.ID, d.Name, d.SourcePath)
	return err
}

// Touch bumps updated_at after an edit to one of the document's sentences.
func (r *DocumentRepo) Touch(ctx context.Context, id string) error {
	return touch(ctx, r.db, id)
}

// TouchTx is Touch inside a caller's transaction.
func (r *DocumentRepo) TouchTx(ctx context.Context, tx *sql.Tx, id string) error {
	return touch(ctx, tx, id)
}

func touch(ctx context.Context, db execer, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE documents SET updated_at=CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

const documentColumns = `d.id, d.name, d.source_path, d.created_at, d.updated_at,
	 (SELECT COUNT(*) FROM sentences s WHERE s.document_id = d.id)`

func (r *DocumentRepo) List(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents d ORDER BY d.updated_at DESC, d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Name, &d.SourcePath, &d.CreatedAt, &d.UpdatedAt, &d.Sentences); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.id = ?`, id)
	var d Document
	if err := row.Scan(&d.ID, &d.Name, &d.SourcePath, &d.CreatedAt, &d.UpdatedAt, &d.Sentences); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// Delete removes a document; sentences and chunks cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}
