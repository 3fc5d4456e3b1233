package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netauction-server/internal/domain/shared"
	"netauction-server/internal/domain/user"
)

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(UserServiceParams{Logger: zerolog.Nop()})
}

func TestUserService_SeedsDefaultAdmin(t *testing.T) {
	s := newTestUserService(t)

	admin, ok := s.Get("admin")
	require.True(t, ok)
	assert.Equal(t, user.RoleAdmin, admin.Role)

	// The seeded credentials actually authenticate.
	u, err := s.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		email    string
		wantErr  error
	}{
		{"empty username", "", "secret", "a@b.com", shared.ErrUsernameRequired},
		{"too short", "ab", "secret", "a@b.com", shared.ErrUsernameTooShort},
		{"too long", "abcdefghijklmnopqrstu", "secret", "a@b.com", shared.ErrUsernameTooLong},
		{"bad characters", "al ice", "secret", "a@b.com", shared.ErrUsernameInvalid},
		{"short password", "alice", "ab", "a@b.com", shared.ErrPasswordTooShort},
		{"bad email", "alice", "secret", "not-an-email", shared.ErrEmailInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register(ctx, tt.username, tt.password, tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_DuplicateUsernameCaseInsensitive(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "secret", "alice@example.com"))
	assert.ErrorIs(t, s.Register(ctx, "ALICE", "secret", "alice2@example.com"), shared.ErrUsernameTaken)
}

func TestAuthenticate_WrongPasswordCountsDown(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret", "alice@example.com"))

	_, err := s.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "2 attempts remaining")

	_, err = s.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "1 attempts remaining")
}

func TestAuthenticate_LockoutAfterThreeFailures(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret", "alice@example.com"))

	for i := 0; i < user.MaxFailedAttempts; i++ {
		_, err := s.Authenticate(ctx, "alice", "wrong")
		require.Error(t, err)
	}

	// Even the right password is rejected while the lock holds.
	_, err := s.Authenticate(ctx, "alice", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily locked")
}

func TestAuthenticate_SuccessResetsCounter(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret", "alice@example.com"))

	_, err := s.Authenticate(ctx, "alice", "wrong")
	require.Error(t, err)

	_, err = s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)

	u, _ := s.Get("alice")
	assert.Equal(t, 0, u.FailedAttempts())
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	s := newTestUserService(t)

	_, err := s.Authenticate(context.Background(), "ghost", "secret")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticate_BlockedAccount(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret", "alice@example.com"))
	require.NoError(t, s.SetBlocked(ctx, "alice", true))

	_, err := s.Authenticate(ctx, "alice", "secret")
	assert.ErrorIs(t, err, shared.ErrAccountBlocked)

	// Unblocking restores access.
	require.NoError(t, s.SetBlocked(ctx, "alice", false))
	_, err = s.Authenticate(ctx, "alice", "secret")
	assert.NoError(t, err)
}

func TestSetBlocked_UnknownUser(t *testing.T) {
	s := newTestUserService(t)
	assert.ErrorIs(t, s.SetBlocked(context.Background(), "ghost", true), shared.ErrUserNotFound)
}
