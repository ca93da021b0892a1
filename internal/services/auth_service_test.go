package services

import (
	"context"
	"testing"
	"time"

	"dreamjournal/internal/auth"
	"dreamjournal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecretKey: "test-secret-key",
			JWTExpiry:    time.Hour,
		},
	}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepository()
	svc := NewAuthService(repo, testServiceConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, "Dana", "Dana@Example.COM", "password123")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", user.Email, "email is stored lowercase")
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "password123", user.PasswordHash)

	// 三个关系集合初始化为空
	assert.Equal(t, 0, user.Friends.Len())
	assert.Equal(t, 0, user.FriendRequests.Len())
	assert.Equal(t, 0, user.SentRequests.Len())

	token, loggedIn, err := svc.Login(ctx, "dana@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.Email, loggedIn.Email)

	claims, err := auth.ValidateToken(ctx, token, "test-secret-key", nil)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeUser, claims.TokenType)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepository()
	svc := NewAuthService(repo, testServiceConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@example.com", "password123")
	require.NoError(t, err)

	// 邮箱比较大小写不敏感
	_, err = svc.Register(ctx, "Imposter", "DANA@example.com", "different")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_LoginFailures(t *testing.T) {
	repo := newFakeUserRepository()
	svc := NewAuthService(repo, testServiceConfig())
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Register(ctx, "Dana", "dana@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "dana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
