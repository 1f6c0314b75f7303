// Package audit keeps the append-only history of what happened to a document.
package audit

import (
	"context"
	"errors"
	"time"
)

type Action string

const (
	ActionUploaded   Action = "document.uploaded"
	ActionDeleted    Action = "document.deleted"
	ActionShared     Action = "document.shared"
	ActionSigned     Action = "document.signed"
	ActionCompleted  Action = "document.completed"
	ActionDownloaded Action = "document.downloaded"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

type Entry struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	ActorID    string         `json:"actorId"`
	Action     Action         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Recorder is what other packages depend on to append history.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Repo interface {
	Insert(ctx context.Context, entry Entry) error
	ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]Entry, error)
}
