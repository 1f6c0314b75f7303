package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
)

type Service struct {
	Repo        Repo
	AdminEmails []string
	Now         func() time.Time
}

func NewService(repo Repo, adminEmails []string) *Service {
	return &Service{Repo: repo, AdminEmails: adminEmails}
}

// UpsertFromAuth persists the identity from OAuth and returns the stored user.
// Emails listed in AdminEmails are promoted to admin.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" || user.Email == "" {
		return User{}, fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}
	if user.Username == "" {
		user.Username = usernameFromEmail(user.Email)
	}
	user.Role = RoleUser
	if s.isAdminEmail(user.Email) {
		user.Role = RoleAdmin
	}
	stored, err := s.Repo.Upsert(ctx, user)
	if err != nil {
		return User{}, err
	}
	if stored.Disabled {
		telemetry.Warn("users.login.disabled", map[string]any{"user_id": stored.ID})
	}
	return stored, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, userID)
}

// IsAdmin matches the signature expected by middleware.RequireAdmin.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]User, int, error) {
	q.Limit, q.Offset = util.Page(q.Limit, q.Offset, defaultListLimit, maxListLimit)
	return s.Repo.List(ctx, q)
}

// Directory lists enabled users other than the caller, the candidates a
// document owner can pick when sharing.
func (s *Service) Directory(ctx context.Context, callerID, search string, limit int) ([]DirectoryEntry, error) {
	limit, _ = util.Page(limit, 0, defaultListLimit, maxListLimit)
	// Over-fetch so filtering the caller and disabled accounts still fills the page.
	candidates, _, err := s.Repo.List(ctx, ListQuery{Search: search, Limit: limit + maxListLimit})
	if err != nil {
		return nil, err
	}
	out := make([]DirectoryEntry, 0, limit)
	for _, u := range candidates {
		if u.ID == callerID || u.Disabled {
			continue
		}
		out = append(out, u.DirectoryEntry())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Lookup resolves ids to users, keyed by id. Unknown ids are absent from the map.
func (s *Service) Lookup(ctx context.Context, userIDs []string) (map[string]User, error) {
	found, err := s.Repo.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]User, len(found))
	for _, u := range found {
		out[u.ID] = u
	}
	return out, nil
}

type CreateInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = usernameFromEmail(email)
	}
	now := s.now()
	user := User{
		ID:        "local:" + uuid.NewString(),
		Email:     email,
		Username:  username,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, userID string, patch Patch) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return User{}, fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
		}
		user.Username = username
	}
	if patch.FullName != nil {
		user.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *patch.Role)
		}
		user.Role = *patch.Role
	}
	if patch.Disabled != nil {
		user.Disabled = *patch.Disabled
	}
	user.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	return s.Repo.Delete(ctx, userID)
}

func (s *Service) isAdminEmail(email string) bool {
	for _, e := range s.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
