package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"docsign-backend/internal/shared/util"
)

// MemoryRepo is an in-memory implementation of DocumentsRepo.
type MemoryRepo struct {
	mu      sync.RWMutex
	docs    map[string]Document
	deleted map[string]time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:    make(map[string]Document),
		deleted: make(map[string]time.Time),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.liveLocked(documentID)
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByOwner returns an owner's documents, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, q ListQuery) ([]Document, int, error) {
	return r.list(ctx, q, func(d Document) bool { return d.OwnerID == ownerID })
}

func (r *MemoryRepo) ListByIDs(ctx context.Context, documentIDs []string, q ListQuery) ([]Document, int, error) {
	want := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		want[id] = struct{}{}
	}
	return r.list(ctx, q, func(d Document) bool {
		_, ok := want[d.ID]
		return ok
	})
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, ownerID, documentID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.liveLocked(documentID)
	if !ok || doc.OwnerID != ownerID {
		return ErrNotFound
	}
	r.deleted[documentID] = at
	return nil
}

func (r *MemoryRepo) UpdateSharing(ctx context.Context, documentID string, status Status, message string, downloadable bool, at time.Time) error {
	return r.update(ctx, documentID, func(d *Document) {
		d.Status = status
		d.Message = message
		d.Downloadable = downloadable
		d.UpdatedAt = at
	})
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, documentID string, status Status, at time.Time) error {
	return r.update(ctx, documentID, func(d *Document) {
		d.Status = status
		d.UpdatedAt = at
	})
}

func (r *MemoryRepo) update(ctx context.Context, documentID string, fn func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.liveLocked(documentID)
	if !ok {
		return ErrNotFound
	}
	fn(&doc)
	r.docs[documentID] = doc
	return nil
}

func (r *MemoryRepo) list(ctx context.Context, q ListQuery, keep func(Document) bool) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]Document, 0)
	for id, d := range r.docs {
		if _, gone := r.deleted[id]; gone {
			continue
		}
		if keep(d) && util.ContainsFold(q.Search, d.FileName) {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	start, end := util.Window(len(matched), q.Limit, q.Offset)
	return matched[start:end], len(matched), nil
}

func (r *MemoryRepo) liveLocked(documentID string) (Document, bool) {
	if _, gone := r.deleted[documentID]; gone {
		return Document{}, false
	}
	doc, ok := r.docs[documentID]
	return doc, ok
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
