// Package events pushes document updates to connected browsers.
package events

import (
	"context"
	"time"

	"docsign-backend/internal/signing"
)

const (
	TypeDocumentUpdated   = "document.updated"
	TypeDocumentSigned    = "document.signed"
	TypeDocumentCompleted = "document.completed"
)

// Event carries the fresh signer list of a document. Clients re-derive turn
// state from SignerSteps instead of patching what they hold.
type Event struct {
	Type        string               `json:"type"`
	DocumentID  string               `json:"documentId"`
	Document    any                  `json:"document,omitempty"`
	SignerSteps []signing.Assignment `json:"signerSteps"`
	OccurredAt  time.Time            `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
