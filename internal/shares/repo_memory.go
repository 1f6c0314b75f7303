package shares

import (
	"context"
	"sort"
	"sync"

	"docsign-backend/internal/signing"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu    sync.Mutex
	lists map[string][]signing.Assignment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{lists: make(map[string][]signing.Assignment)}
}

func (r *MemoryRepo) List(ctx context.Context, documentID string) ([]signing.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyList(r.lists[documentID]), nil
}

func (r *MemoryRepo) Update(ctx context.Context, documentID string, fn func([]signing.Assignment) ([]signing.Assignment, error)) ([]signing.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := fn(copyList(r.lists[documentID]))
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		delete(r.lists, documentID)
		return []signing.Assignment{}, nil
	}
	r.lists[documentID] = copyList(next)
	return copyList(next), nil
}

func (r *MemoryRepo) IsParticipant(ctx context.Context, documentID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return signing.Index(r.lists[documentID], userID) >= 0, nil
}

func (r *MemoryRepo) DocumentsFor(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for docID, list := range r.lists {
		if signing.Index(list, userID) >= 0 {
			out = append(out, docID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func copyList(list []signing.Assignment) []signing.Assignment {
	out := make([]signing.Assignment, len(list))
	for i, a := range list {
		if a.SignedAt != nil {
			t := *a.SignedAt
			a.SignedAt = &t
		}
		out[i] = a
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
