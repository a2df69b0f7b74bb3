package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/password"
	"github.com/notehaven/notehaven-auth/internal/service"
)

func TestPasswordLoginFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testWorkspace())

	hash, err := password.Hash("correct horse")
	require.NoError(t, err)
	h.users.byEmail["admin@example.com"] = domain.User{
		ID:           5,
		WorkspaceID:  1,
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}

	session, err := h.auth.Login(ctx, 1, "Admin@Example.com ", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, int64(5), session.User.ID)

	user, err := h.auth.ValidateSession(ctx, 1, session.Token)
	require.NoError(t, err)
	require.Equal(t, int64(5), user.ID)
	require.True(t, user.IsAdmin())

	_, err = h.auth.Login(ctx, 1, "admin@example.com", "wrong password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = h.auth.Login(ctx, 1, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testWorkspace())

	hash, err := password.Hash("old password")
	require.NoError(t, err)
	h.users.byEmail["user@example.com"] = domain.User{
		ID:           9,
		WorkspaceID:  1,
		Email:        "user@example.com",
		PasswordHash: hash,
		Role:         domain.RoleMember,
	}

	err = h.auth.ChangePassword(ctx, 1, 9, "wrong", "next password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	err = h.auth.ChangePassword(ctx, 1, 9, "old password", "next password")
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, 1, "user@example.com", "next password")
	require.NoError(t, err)
}
