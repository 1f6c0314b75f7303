package audit

import (
	"context"
	"sync"

	"docsign-backend/internal/shared/util"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string][]Entry)}
}

func (r *MemoryRepo) Insert(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.DocumentID] = append(r.entries[entry.DocumentID], entry)
	return nil
}

func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.entries[documentID]
	start, end := util.Window(len(all), limit, offset)
	out := make([]Entry, end-start)
	copy(out, all[start:end])
	return out, nil
}
