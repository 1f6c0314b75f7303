package documents

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, file_name, mime_type, size_bytes, page_count, storage_provider, storage_key, status, message, downloadable, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    file_name,
    mime_type,
    size_bytes,
    page_count,
    storage_provider,
    storage_key,
    status,
    message,
    downloadable,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	status := doc.Status
	if status == "" {
		status = StatusDraft
	}

	var storageKey sql.NullString
	if doc.StorageKey != "" {
		storageKey = sql.NullString{String: doc.StorageKey, Valid: true}
	}
	var message sql.NullString
	if doc.Message != "" {
		message = sql.NullString{String: doc.Message, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.PageCount,
		storageProvider,
		storageKey,
		string(status),
		message,
		doc.Downloadable,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a live document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByOwner lists an owner's documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, q ListQuery) ([]Document, int, error) {
	return r.list(ctx, "owner_id = $1", ownerID, q)
}

// ListByIDs lists the given documents ordered newest-first.
func (r *PGRepo) ListByIDs(ctx context.Context, documentIDs []string, q ListQuery) ([]Document, int, error) {
	if len(documentIDs) == 0 {
		return []Document{}, 0, nil
	}
	return r.list(ctx, "id = ANY($1)", documentIDs, q)
}

func (r *PGRepo) list(ctx context.Context, filter string, arg any, q ListQuery) ([]Document, int, error) {
	pattern := "%" + strings.TrimSpace(q.Search) + "%"
	where := `WHERE ` + filter + ` AND deleted_at IS NULL AND file_name ILIKE $2`

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM documents `+where, arg, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + `
FROM documents
` + where + `
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`
	rows, err := r.DB.QueryContext(ctx, query, arg, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SoftDelete hides a document owned by ownerID.
func (r *PGRepo) SoftDelete(ctx context.Context, ownerID, documentID string, at time.Time) error {
	const query = `
UPDATE documents
SET deleted_at = $1, updated_at = $1
WHERE id = $2 AND owner_id = $3 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, at, documentID, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGRepo) UpdateSharing(ctx context.Context, documentID string, status Status, message string, downloadable bool, at time.Time) error {
	const query = `
UPDATE documents
SET status = $1, message = $2, downloadable = $3, updated_at = $4
WHERE id = $5 AND deleted_at IS NULL`
	var msg sql.NullString
	if message != "" {
		msg = sql.NullString{String: message, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, string(status), msg, downloadable, at, documentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGRepo) UpdateStatus(ctx context.Context, documentID string, status Status, at time.Time) error {
	const query = `
UPDATE documents
SET status = $1, updated_at = $2
WHERE id = $3 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, string(status), at, documentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var storageKey sql.NullString
	var message sql.NullString
	var status string
	var updatedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.PageCount,
		&doc.StorageProvider,
		&storageKey,
		&status,
		&message,
		&doc.Downloadable,
		&doc.CreatedAt,
		&updatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.StorageKey = storageKey.String
	doc.Message = message.String
	doc.Status = Status(status)
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	} else {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ DocumentsRepo = (*PGRepo)(nil)
