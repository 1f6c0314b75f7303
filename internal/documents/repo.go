package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents. Soft-deleted
// documents are invisible to every read.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	ListByOwner(ctx context.Context, ownerID string, q ListQuery) ([]Document, int, error)
	ListByIDs(ctx context.Context, documentIDs []string, q ListQuery) ([]Document, int, error)
	SoftDelete(ctx context.Context, ownerID, documentID string, at time.Time) error
	UpdateSharing(ctx context.Context, documentID string, status Status, message string, downloadable bool, at time.Time) error
	UpdateStatus(ctx context.Context, documentID string, status Status, at time.Time) error
}
