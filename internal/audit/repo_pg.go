package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Insert(ctx context.Context, entry Entry) error {
	var details any
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = raw
	}
	const query = `
INSERT INTO audit_entries (id, document_id, actor_id, action, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.DocumentID,
		entry.ActorID,
		string(entry.Action),
		details,
		entry.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]Entry, error) {
	const query = `
SELECT id, document_id, actor_id, action, details, created_at
FROM audit_entries
WHERE document_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, documentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		var details []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.ActorID, &action, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details id=%s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
