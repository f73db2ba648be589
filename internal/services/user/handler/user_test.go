package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/testdb"
	"caisse-system/internal/permissions"
)

func newUserHandler(t *testing.T) *UserHandler {
	t.Helper()
	h := NewUserHandler(testdb.New(t), nil)
	h.cost = bcrypt.MinCost
	return h
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	h := newUserHandler(t)
	ctx := context.Background()

	user, err := h.CreateUser(ctx, CreateUserInput{
		Username: "aminata",
		Email:    "aminata@boutique.sn",
		Password: "secret1",
		Role:     permissions.RoleSeller,
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	caller, err := h.Authenticate(ctx, "aminata", "secret1")
	require.NoError(t, err)
	assert.Equal(t, permissions.Caller{UserID: user.ID, Username: "aminata", Role: permissions.RoleSeller}, caller)

	stored, err := h.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	_, err = h.Authenticate(ctx, "aminata", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = h.Authenticate(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	require.NoError(t, h.DeactivateUser(ctx, user.ID))
	_, err = h.Authenticate(ctx, "aminata", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	h := newUserHandler(t)
	ctx := context.Background()

	_, err := h.CreateUser(ctx, CreateUserInput{Username: "ab", Email: "nope", Password: "secret1", Role: "boss"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Violations, 3)

	for _, email := range []string{"", "o@", "o x@x.sn", "<o@x.sn>"} {
		_, err = h.CreateUser(ctx, CreateUserInput{Username: "ousmane", Email: email, Password: "123456", Role: permissions.RoleManager})
		require.ErrorAs(t, err, &ae, email)
		assert.Contains(t, ae.Violations, "email", email)
	}

	_, err = h.CreateUser(ctx, CreateUserInput{Username: "ousmane", Email: "o@x.sn", Password: "123", Role: permissions.RoleManager})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.CreateUser(ctx, CreateUserInput{Username: "ousmane", Email: "o@x.sn", Password: "123456", Role: permissions.RoleManager})
	require.NoError(t, err)
	_, err = h.CreateUser(ctx, CreateUserInput{Username: "ousmane", Email: "other@x.sn", Password: "123456", Role: permissions.RoleManager})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateAndListUsers(t *testing.T) {
	h := newUserHandler(t)
	ctx := context.Background()

	a, err := h.CreateUser(ctx, CreateUserInput{Username: "binta", Email: "binta@x.sn", Password: "123456", Role: permissions.RoleSeller})
	require.NoError(t, err)
	_, err = h.CreateUser(ctx, CreateUserInput{Username: "cheikh", Email: "cheikh@x.sn", Password: "123456", Role: permissions.RoleSeller})
	require.NoError(t, err)

	role := permissions.RoleManager
	updated, err := h.UpdateUser(ctx, a.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, permissions.RoleManager, updated.Role)

	bad := permissions.Role("owner")
	_, err = h.UpdateUser(ctx, a.ID, UpdateUserInput{Role: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Len(t, h.ListUsersByRole(ctx, permissions.RoleSeller), 1)
	assert.Len(t, h.ListUsersByRole(ctx, permissions.RoleManager), 1)

	require.NoError(t, h.DeactivateUser(ctx, a.ID))
	assert.Len(t, h.ListUsers(ctx, true), 1)
	assert.Len(t, h.ListUsers(ctx, false), 2)

	require.NoError(t, h.ResetPassword(ctx, a.ID, "nouveau1"))
	assert.ErrorIs(t, h.ResetPassword(ctx, 999, "nouveau1"), apperr.ErrNotFound)

	require.NoError(t, h.DeleteUser(ctx, a.ID))
	assert.ErrorIs(t, h.DeleteUser(ctx, a.ID), apperr.ErrNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	h := newUserHandler(t)
	ctx := context.Background()

	created, err := h.EnsureAdmin(ctx, "admin", "admin@boutique.sn", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = h.EnsureAdmin(ctx, "admin2", "admin2@boutique.sn", "admin123")
	require.NoError(t, err)
	assert.False(t, created)

	caller, err := h.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, caller.Can(permissions.EditSettings))
}
