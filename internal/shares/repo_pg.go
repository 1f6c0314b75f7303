package shares

import (
	"context"
	"database/sql"

	"docsign-backend/internal/shared/storage/db"
	"docsign-backend/internal/signing"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const participantColumns = `user_id, username, email, permission, step, parallel, has_signed, signed_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PGRepo) List(ctx context.Context, documentID string) ([]signing.Assignment, error) {
	return listParticipants(ctx, r.DB, documentID)
}

// Update locks the document row so concurrent shares and signatures on the
// same document apply one after another.
func (r *PGRepo) Update(ctx context.Context, documentID string, fn func([]signing.Assignment) ([]signing.Assignment, error)) ([]signing.Assignment, error) {
	var result []signing.Assignment
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, documentID).Scan(&locked)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := listParticipants(ctx, tx, documentID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM document_participants WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		const insert = `
INSERT INTO document_participants (
    document_id, user_id, username, email, permission, position, step, parallel, has_signed, signed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		for i, a := range next {
			var signedAt sql.NullTime
			if a.SignedAt != nil {
				signedAt = sql.NullTime{Time: *a.SignedAt, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, insert,
				documentID, a.UserID, a.Username, a.Email, string(a.Permission), i, a.Step, a.Parallel, a.HasSigned, signedAt,
			); err != nil {
				return err
			}
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []signing.Assignment{}
	}
	return result, nil
}

func (r *PGRepo) IsParticipant(ctx context.Context, documentID, userID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_participants WHERE document_id = $1 AND user_id = $2)`,
		documentID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *PGRepo) DocumentsFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT document_id FROM document_participants WHERE user_id = $1 ORDER BY document_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func listParticipants(ctx context.Context, q querier, documentID string) ([]signing.Assignment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+participantColumns+`
FROM document_participants
WHERE document_id = $1
ORDER BY position`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]signing.Assignment, 0)
	for rows.Next() {
		var a signing.Assignment
		var perm string
		var signedAt sql.NullTime
		if err := rows.Scan(&a.UserID, &a.Username, &a.Email, &perm, &a.Step, &a.Parallel, &a.HasSigned, &signedAt); err != nil {
			return nil, err
		}
		a.Permission = signing.Permission(perm)
		if signedAt.Valid {
			t := signedAt.Time.UTC()
			a.SignedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
