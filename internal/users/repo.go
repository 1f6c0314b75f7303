package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrConflict     = errors.New("user already exists")
	ErrInvalidInput = errors.New("invalid user input")
)

type Repo interface {
	Upsert(ctx context.Context, user User) (User, error)
	Create(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	Delete(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetMany(ctx context.Context, userIDs []string) ([]User, error)
	List(ctx context.Context, q ListQuery) ([]User, int, error)
}
