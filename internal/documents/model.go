package documents

import (
	"context"
	"time"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusShared     Status = "shared"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusShared, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Document represents an uploaded PDF owned by a user.
type Document struct {
	ID              string
	OwnerID         string
	FileName        string
	MimeType        string
	SizeBytes       int64
	PageCount       int
	StorageProvider string
	StorageKey      string
	Status          Status
	Message         string
	Downloadable    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ListQuery struct {
	Search string
	Limit  int
	Offset int
}

// AccessChecker answers participant questions the documents package cannot:
// who a document was shared with.
type AccessChecker interface {
	CanView(ctx context.Context, documentID, userID string) (bool, error)
	SharedWith(ctx context.Context, userID string) ([]string, error)
}
