package services

import (
	"context"
	"fmt"
	"testing"

	"dreamjournal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(id uint, name, email string) *models.User {
	u := &models.User{Name: name, Email: email,
		Friends: models.NewIDSet(), FriendRequests: models.NewIDSet(), SentRequests: models.NewIDSet()}
	u.ID = id
	return u
}

func TestUserService_SearchNoMatchReturnsEmpty(t *testing.T) {
	repo := newFakeUserRepository(
		seedUser(1, "Alice", "alice@example.com"),
		seedUser(2, "Bob", "bob@example.com"),
	)
	svc := NewUserService(repo)

	// 无匹配返回空数组，不是错误
	results, err := svc.SearchUsers(context.Background(), "zzz-no-such-user", 1)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestUserService_SearchExcludesCaller(t *testing.T) {
	repo := newFakeUserRepository(
		seedUser(1, "Dreamer One", "one@dream.example"),
		seedUser(2, "Dreamer Two", "two@dream.example"),
	)
	svc := NewUserService(repo)

	results, err := svc.SearchUsers(context.Background(), "dreamer", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint(2), results[0].ID, "caller must not appear in their own search results")
}

func TestUserService_SearchCaseInsensitiveOnNameAndEmail(t *testing.T) {
	repo := newFakeUserRepository(
		seedUser(1, "Alice", "alice@example.com"),
		seedUser(2, "BOB", "bob@example.com"),
		seedUser(3, "Carol", "carol@dreams.example"),
	)
	svc := NewUserService(repo)

	byName, err := svc.SearchUsers(context.Background(), "bob", 1)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, uint(2), byName[0].ID)

	byEmail, err := svc.SearchUsers(context.Background(), "DREAMS.EXAMPLE", 1)
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, uint(3), byEmail[0].ID)
}

func TestUserService_SearchCappedAtFive(t *testing.T) {
	users := make([]*models.User, 0, 8)
	for i := uint(1); i <= 8; i++ {
		users = append(users, seedUser(i, fmt.Sprintf("Dreamer %d", i), fmt.Sprintf("dreamer%d@example.com", i)))
	}
	repo := newFakeUserRepository(users...)
	svc := NewUserService(repo)

	// 8 个用户中 7 个匹配（排除调用者），结果仍被截断到 5 条
	results, err := svc.SearchUsers(context.Background(), "dreamer", 1)
	require.NoError(t, err)
	assert.Len(t, results, userSearchLimit)
	for _, r := range results {
		assert.NotEqual(t, uint(1), r.ID)
	}
}

func TestUserService_FindByEmail(t *testing.T) {
	repo := newFakeUserRepository(seedUser(1, "Alice", "alice@example.com"))
	svc := NewUserService(repo)
	ctx := context.Background()

	info, err := svc.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(1), info.ID)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, "alice@example.com", info.Email)

	// 查找大小写不敏感（邮箱统一小写存储）
	info, err = svc.FindByEmail(ctx, "ALICE@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, uint(1), info.ID)

	// 未注册的邮箱表现为用户不存在
	_, err = svc.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
