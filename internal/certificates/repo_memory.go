package certificates

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	certs map[string]Certificate
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{certs: make(map[string]Certificate)}
}

func (r *MemoryRepo) Create(ctx context.Context, cert Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.certs {
		if existing.UserID == cert.UserID && existing.FingerprintSHA256 == cert.FingerprintSHA256 {
			return ErrConflict
		}
	}
	r.certs[cert.ID] = cert
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Certificate, error) {
	if err := ctx.Err(); err != nil {
		return Certificate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, ok := r.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Certificate, 0)
	for _, c := range r.certs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok || cert.UserID != userID {
		return ErrNotFound
	}
	delete(r.certs, id)
	return nil
}
