package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Record stamps id and time when missing and appends the entry.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.DocumentID) == "" || strings.TrimSpace(string(entry.Action)) == "" {
		return fmt.Errorf("%w: document id and action are required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.Repo.Insert(ctx, entry); err != nil {
		telemetry.Error("audit.record.failed", telemetry.Err(map[string]any{
			"document_id": entry.DocumentID,
			"action":      entry.Action,
		}, err))
		return err
	}
	return nil
}

// List returns entries oldest first.
func (s *Service) List(ctx context.Context, documentID string, limit, offset int) ([]Entry, error) {
	limit, offset = util.Page(limit, offset, defaultListLimit, maxListLimit)
	entries, err := s.Repo.ListByDocument(ctx, documentID, limit, offset)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
