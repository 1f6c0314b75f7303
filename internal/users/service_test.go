package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(admins ...string) *Service {
	svc := NewService(NewMemoryRepo(), admins)
	svc.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestUpsertFromAuthPromotesAdminEmails(t *testing.T) {
	ctx := context.Background()
	svc := newTestService("boss@example.com")

	boss, err := svc.UpsertFromAuth(ctx, User{ID: "google:1", Email: "Boss@Example.com", FullName: "The Boss"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, boss.Role)
	assert.Equal(t, "boss@example.com", boss.Email)
	assert.Equal(t, "boss", boss.Username)

	worker, err := svc.UpsertFromAuth(ctx, User{ID: "google:2", Email: "worker@example.com"})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, worker.Role)

	isAdmin, err := svc.IsAdmin(ctx, "google:1")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	isAdmin, err = svc.IsAdmin(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestUpsertFromAuthKeepsAdminManagedFields(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.UpsertFromAuth(ctx, User{ID: "google:1", Email: "a@example.com"})
	require.NoError(t, err)

	admin := RoleAdmin
	name := "alice"
	_, err = svc.Update(ctx, "google:1", Patch{Role: &admin, Username: &name})
	require.NoError(t, err)

	again, err := svc.UpsertFromAuth(ctx, User{ID: "google:1", Email: "a@example.com", FullName: "Alice A"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, again.Role)
	assert.Equal(t, "alice", again.Username)
	assert.Equal(t, "Alice A", again.FullName)
}

func TestUpsertFromAuthRequiresEmail(t *testing.T) {
	_, err := newTestService().UpsertFromAuth(context.Background(), User{ID: "google:1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDirectoryExcludesCallerAndDisabled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	for _, u := range []CreateInput{
		{Email: "alice@example.com"},
		{Email: "bob@example.com"},
		{Email: "carol@example.com"},
	} {
		_, err := svc.Create(ctx, u)
		require.NoError(t, err)
	}
	all, _, err := svc.List(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	alice, bob := all[0], all[1]
	disabled := true
	_, err = svc.Update(ctx, bob.ID, Patch{Disabled: &disabled})
	require.NoError(t, err)

	entries, err := svc.Directory(ctx, alice.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "carol@example.com", entries[0].Email)

	entries, err = svc.Directory(ctx, "", "ALI", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, alice.ID, entries[0].ID)
}

func TestCreateValidatesAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Create(ctx, CreateInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{Email: "x@example.com", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	created, err := svc.Create(ctx, CreateInput{Email: "x@example.com", FullName: " X "})
	require.NoError(t, err)
	assert.Equal(t, "x", created.Username)
	assert.Equal(t, "X", created.FullName)
	assert.Equal(t, RoleUser, created.Role)

	_, err = svc.Create(ctx, CreateInput{Email: "X@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	a, err := svc.Create(ctx, CreateInput{Email: "a@example.com"})
	require.NoError(t, err)

	found, err := svc.Lookup(ctx, []string{a.ID, "ghost"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, a.ID)

	assert.ErrorIs(t, svc.Delete(ctx, a.ID, a.ID), ErrInvalidInput)
	require.NoError(t, svc.Delete(ctx, "admin", a.ID))
	_, err = svc.GetByID(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := svc.Create(ctx, CreateInput{Email: e})
		require.NoError(t, err)
	}
	page, total, err := svc.List(ctx, ListQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b@x.io", page[0].Email)
}
