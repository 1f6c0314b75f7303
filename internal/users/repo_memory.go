package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"docsign-backend/internal/shared/util"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

// Upsert refreshes profile fields and keeps role, disabled flag and username.
func (r *MemoryRepo) Upsert(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := r.users[user.ID]
	if !ok {
		if r.emailTakenLocked(user.Email, user.ID) {
			return User{}, ErrConflict
		}
		user.CreatedAt = now
		user.UpdatedAt = now
		r.users[user.ID] = user
		return user, nil
	}
	existing.Email = user.Email
	existing.FullName = user.FullName
	existing.PictureURL = user.PictureURL
	if existing.Username == "" {
		existing.Username = user.Username
	}
	if user.Role == RoleAdmin {
		existing.Role = RoleAdmin
	}
	existing.UpdatedAt = now
	r.users[user.ID] = existing
	return existing, nil
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok || r.emailTakenLocked(user.Email, "") {
		return ErrConflict
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetMany(ctx context.Context, userIDs []string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryRepo) List(ctx context.Context, q ListQuery) ([]User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if util.ContainsFold(q.Search, u.Email, u.Username, u.FullName) {
			matched = append(matched, u)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Email != matched[j].Email {
			return matched[i].Email < matched[j].Email
		}
		return matched[i].ID < matched[j].ID
	})
	start, end := util.Window(len(matched), q.Limit, q.Offset)
	return matched[start:end], len(matched), nil
}

func (r *MemoryRepo) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}
