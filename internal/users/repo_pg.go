package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docsign-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, username, full_name, picture_url, role, disabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Upsert refreshes the profile on login. Role only ever moves up to admin here;
// demotion is an explicit admin action.
func (r *PGRepo) Upsert(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, email, username, full_name, picture_url, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  username = CASE WHEN users.username = '' THEN EXCLUDED.username ELSE users.username END,
  full_name = EXCLUDED.full_name,
  picture_url = EXCLUDED.picture_url,
  role = CASE WHEN EXCLUDED.role = 'admin' THEN 'admin' ELSE users.role END,
  updated_at = now()
RETURNING ` + userColumns
	out, err := scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		nullableString(user.FullName),
		nullableString(user.PictureURL),
		string(roleOrDefault(user.Role)),
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return out, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, username, full_name, picture_url, role, disabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		nullableString(user.FullName),
		nullableString(user.PictureURL),
		string(roleOrDefault(user.Role)),
		user.Disabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users
SET username = $2, full_name = $3, role = $4, disabled = $5, updated_at = $6
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Username,
		nullableString(user.FullName),
		string(roleOrDefault(user.Role)),
		user.Disabled,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) GetMany(ctx context.Context, userIDs []string) ([]User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.DB.QueryContext(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PGRepo) List(ctx context.Context, q ListQuery) ([]User, int, error) {
	pattern := "%" + strings.TrimSpace(q.Search) + "%"
	var total int
	if err := r.DB.QueryRowContext(ctx, `
SELECT count(*) FROM users
WHERE email ILIKE $1 OR username ILIKE $1 OR coalesce(full_name, '') ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users
WHERE email ILIKE $1 OR username ILIKE $1 OR coalesce(full_name, '') ILIKE $1
ORDER BY email, id
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]User, 0, q.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var fullName sql.NullString
	var pictureURL sql.NullString
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&fullName,
		&pictureURL,
		&role,
		&user.Disabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return User{}, err
	}
	user.FullName = fullName.String
	user.PictureURL = pictureURL.String
	user.Role = Role(role)
	return user, nil
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

func roleOrDefault(r Role) Role {
	if r.Valid() {
		return r
	}
	return RoleUser
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
