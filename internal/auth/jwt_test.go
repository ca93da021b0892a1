package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"dreamjournal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthCfg = config.AuthConfig{
	JWTSecretKey: "test-secret-key",
	JWTExpiry:    time.Hour,
}

// memBlacklist 是 TokenBlacklist 的内存实现。
type memBlacklist struct {
	mu   sync.Mutex
	jtis map[string]struct{}
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{jtis: make(map[string]struct{})}
}

func (b *memBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = struct{}{}
	return nil
}

func (b *memBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jtis[jti]
	return ok, nil
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(42, "user@example.com", TokenTypeUser, testAuthCfg)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.SubjectID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, TokenTypeUser, claims.TokenType)
	assert.NotEmpty(t, claims.ID, "token must carry a JTI")
}

func TestValidateToken_WrongKey(t *testing.T) {
	token, err := GenerateToken(1, "user@example.com", TokenTypeUser, testAuthCfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "another-key", nil)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	expiredCfg := config.AuthConfig{JWTSecretKey: testAuthCfg.JWTSecretKey, JWTExpiry: -time.Minute}
	token, err := GenerateToken(1, "user@example.com", TokenTypeUser, expiredCfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	assert.Error(t, err)
}

func TestValidateToken_TokenTypeDistinguishesAdmin(t *testing.T) {
	adminToken, err := GenerateToken(7, "admin@example.com", TokenTypeAdmin, testAuthCfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), adminToken, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
}

func TestValidateToken_Blacklisted(t *testing.T) {
	ctx := context.Background()
	blacklist := newMemBlacklist()

	token, err := GenerateToken(1, "user@example.com", TokenTypeUser, testAuthCfg)
	require.NoError(t, err)

	claims, err := ValidateToken(ctx, token, testAuthCfg.JWTSecretKey, blacklist)
	require.NoError(t, err)

	// 登出：JTI 入黑名单后同一令牌立即失效
	require.NoError(t, blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time))
	_, err = ValidateToken(ctx, token, testAuthCfg.JWTSecretKey, blacklist)
	assert.Error(t, err)

	// 其他令牌不受影响
	other, err := GenerateToken(2, "other@example.com", TokenTypeUser, testAuthCfg)
	require.NoError(t, err)
	_, err = ValidateToken(ctx, other, testAuthCfg.JWTSecretKey, blacklist)
	assert.NoError(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)

	assert.True(t, CheckPasswordHash("s3cret-password", hash))
	assert.False(t, CheckPasswordHash("wrong-password", hash))
}
