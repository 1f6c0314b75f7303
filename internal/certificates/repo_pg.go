package certificates

import (
	"context"
	"database/sql"
	"errors"

	"docsign-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const certColumns = `id, user_id, label, subject, issuer, serial_number, not_before, not_after, fingerprint_sha256, storage_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Create(ctx context.Context, cert Certificate) error {
	const query = `
INSERT INTO certificates (` + certColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		cert.ID,
		cert.UserID,
		cert.Label,
		cert.Subject,
		cert.Issuer,
		cert.SerialNumber,
		cert.NotBefore,
		cert.NotAfter,
		cert.FingerprintSHA256,
		nullableString(cert.StorageKey),
		cert.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Certificate, error) {
	cert, err := scanCertificate(r.DB.QueryRowContext(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Certificate{}, ErrNotFound
	}
	return cert, err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Certificate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+certColumns+` FROM certificates WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Certificate, 0)
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM certificates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCertificate(row rowScanner) (Certificate, error) {
	var c Certificate
	var storageKey sql.NullString
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Label,
		&c.Subject,
		&c.Issuer,
		&c.SerialNumber,
		&c.NotBefore,
		&c.NotAfter,
		&c.FingerprintSHA256,
		&storageKey,
		&c.CreatedAt,
	)
	if err != nil {
		return Certificate{}, err
	}
	c.StorageKey = storageKey.String
	return c, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
