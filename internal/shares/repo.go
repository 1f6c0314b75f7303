package shares

import (
	"context"

	"docsign-backend/internal/signing"
)

// Repo persists the participant list of each document in list order.
type Repo interface {
	List(ctx context.Context, documentID string) ([]signing.Assignment, error)
	// Update replaces a document's list with what fn returns. Calls for the
	// same document are serialized; an error from fn leaves the list as is.
	Update(ctx context.Context, documentID string, fn func(current []signing.Assignment) ([]signing.Assignment, error)) ([]signing.Assignment, error)
	IsParticipant(ctx context.Context, documentID, userID string) (bool, error)
	DocumentsFor(ctx context.Context, userID string) ([]string, error)
}
