package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"dreamjournal/internal/config"
	"dreamjournal/internal/models"
	"dreamjournal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepository 是 UserRepository 的内存实现，供协议测试使用。
// Get 系列方法返回深拷贝，Update 写回，贴近真实仓库的读-改-写语义。
type fakeUserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepository(users ...*models.User) *fakeUserRepository {
	repo := &fakeUserRepository{nextID: 1, users: make(map[uint]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = cloneUser(u)
		if u.ID >= repo.nextID {
			repo.nextID = u.ID + 1
		}
	}
	return repo
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Friends = cloneSet(u.Friends)
	c.FriendRequests = cloneSet(u.FriendRequests)
	c.SentRequests = cloneSet(u.SentRequests)
	return &c
}

func cloneSet(s models.IDSet) models.IDSet {
	out := models.NewIDSet()
	for _, id := range s.IDs() {
		out.Add(id)
	}
	return out
}

func (f *fakeUserRepository) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	f.users[user.ID] = cloneUser(user)
	return nil
}

func (f *fakeUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (f *fakeUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 邮箱统一小写存储，查询前同样归一化（与 gorm 实现一致）
	email = strings.ToLower(email)
	for _, u := range f.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeUserRepository) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.users[user.ID] = cloneUser(user)
	return nil
}

func (f *fakeUserRepository) Transaction(ctx context.Context, fn func(repo storage.UserRepository) error) error {
	return fn(f)
}

// SearchUsers 与 gorm 实现保持相同语义：name/email 大小写不敏感的
// 子串匹配，排除调用者自己，结果数量由 limit 截断。
func (f *fakeUserRepository) SearchUsers(ctx context.Context, query string, excludeUserID uint, limit int) ([]*models.UserBasicInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term := strings.ToLower(query)
	results := []*models.UserBasicInfo{}
	for _, id := range sortedUserIDs(f.users) {
		u := f.users[id]
		if u.ID == excludeUserID {
			continue
		}
		if !strings.Contains(strings.ToLower(u.Name), term) && !strings.Contains(strings.ToLower(u.Email), term) {
			continue
		}
		results = append(results, u.BasicInfo())
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func sortedUserIDs(users map[uint]*models.User) []uint {
	ids := make([]uint, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeUserRepository) GetBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := []*models.UserBasicInfo{}
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			infos = append(infos, u.BasicInfo())
		}
	}
	return infos, nil
}

func (f *fakeUserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *cloneUser(u))
	}
	return out, nil
}

func (f *fakeUserRepository) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// fakeDreamRepository 只实现协议测试需要的 ListByOwner。
type fakeDreamRepository struct {
	dreams map[uint][]models.Dream
}

func (f *fakeDreamRepository) Create(ctx context.Context, dream *models.Dream) error { return nil }
func (f *fakeDreamRepository) GetByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (*models.Dream, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeDreamRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Dream, error) {
	return f.dreams[ownerID], nil
}
func (f *fakeDreamRepository) Update(ctx context.Context, dream *models.Dream) error { return nil }
func (f *fakeDreamRepository) DeleteByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (bool, error) {
	return false, nil
}
func (f *fakeDreamRepository) ListAll(ctx context.Context) ([]models.Dream, error) { return nil, nil }
func (f *fakeDreamRepository) Count(ctx context.Context) (int64, error)            { return 0, nil }

// recordingProducer 记录协议转移发布的所有事件。
type recordingProducer struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, value)
	return nil
}

func (p *recordingProducer) Close() {}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type friendFixture struct {
	repo     *fakeUserRepository
	producer *recordingProducer
	svc      FriendService
}

func newFriendFixture(t *testing.T) *friendFixture {
	t.Helper()
	alice := &models.User{Name: "Alice", Email: "alice@example.com",
		Friends: models.NewIDSet(), FriendRequests: models.NewIDSet(), SentRequests: models.NewIDSet()}
	alice.ID = 1
	bob := &models.User{Name: "Bob", Email: "bob@example.com",
		Friends: models.NewIDSet(), FriendRequests: models.NewIDSet(), SentRequests: models.NewIDSet()}
	bob.ID = 2
	carol := &models.User{Name: "Carol", Email: "carol@example.com",
		Friends: models.NewIDSet(), FriendRequests: models.NewIDSet(), SentRequests: models.NewIDSet()}
	carol.ID = 3

	repo := newFakeUserRepository(alice, bob, carol)
	producer := &recordingProducer{}
	dreamRepo := &fakeDreamRepository{dreams: map[uint][]models.Dream{
		2: {{UserID: 2, Title: "Flying", Content: "over the city", Mood: models.MoodExciting}},
	}}

	svc := NewFriendService(repo, dreamRepo, producer, config.KafkaConfig{FriendEventTopic: "test-friend-events"})
	return &friendFixture{repo: repo, producer: producer, svc: svc}
}

// assertPairInvariants 检查一对用户的对称性与互斥性不变量。
func assertPairInvariants(t *testing.T, repo *fakeUserRepository, aID, bID uint) {
	t.Helper()
	a, err := repo.GetByID(context.Background(), aID)
	require.NoError(t, err)
	b, err := repo.GetByID(context.Background(), bID)
	require.NoError(t, err)

	// 对称性：a 视 b 为好友 <=> b 视 a 为好友；
	// a 发给 b 的请求 <=> b 收到 a 的请求
	assert.Equal(t, a.Friends.Contains(bID), b.Friends.Contains(aID), "friendship must be symmetric")
	assert.Equal(t, a.SentRequests.Contains(bID), b.FriendRequests.Contains(aID), "sent/received must mirror")
	assert.Equal(t, b.SentRequests.Contains(aID), a.FriendRequests.Contains(bID), "sent/received must mirror")

	// 互斥性：同一对用户最多处于一种关系状态
	states := 0
	if a.Friends.Contains(bID) {
		states++
	}
	if a.SentRequests.Contains(bID) {
		states++
	}
	if a.FriendRequests.Contains(bID) {
		states++
	}
	assert.LessOrEqual(t, states, 1, "pair must be in at most one state")
}

func TestFriendService_SendAcceptLifecycle(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	assertPairInvariants(t, fx.repo, 1, 2)

	alice, _ := fx.repo.GetByID(ctx, 1)
	bob, _ := fx.repo.GetByID(ctx, 2)
	assert.Equal(t, PairRequested, DerivePairState(alice, bob))
	assert.Equal(t, PairIncoming, DerivePairState(bob, alice))

	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	assertPairInvariants(t, fx.repo, 1, 2)

	alice, _ = fx.repo.GetByID(ctx, 1)
	bob, _ = fx.repo.GetByID(ctx, 2)
	assert.Equal(t, PairFriends, DerivePairState(alice, bob))
	assert.Equal(t, PairFriends, DerivePairState(bob, alice))

	// 请求集合已被清空
	assert.Equal(t, 0, alice.SentRequests.Len())
	assert.Equal(t, 0, bob.FriendRequests.Len())

	// 每次转移各发布一条通知事件
	assert.Equal(t, 2, fx.producer.count())
}

func TestFriendService_SendRequestSelf(t *testing.T) {
	fx := newFriendFixture(t)
	err := fx.svc.SendRequest(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrFriendRequestSelf)
	assert.Equal(t, 0, fx.producer.count())
}

func TestFriendService_SendRequestTargetMissing(t *testing.T) {
	fx := newFriendFixture(t)
	err := fx.svc.SendRequest(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrFriendUserNotFound)
}

func TestFriendService_SendRequestDuplicate(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	err := fx.svc.SendRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrFriendRequestExists)

	// 重复请求不会产生第二条通知
	assert.Equal(t, 1, fx.producer.count())
	assertPairInvariants(t, fx.repo, 1, 2)
}

func TestFriendService_SendRequestWhilePeerPending(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 2, 1))

	// 对方已先发请求：不允许反向再发，应直接处理现有请求
	err := fx.svc.SendRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrPeerRequestPending)
	assertPairInvariants(t, fx.repo, 1, 2)
}

func TestFriendService_SendRequestAlreadyFriends(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))

	err := fx.svc.SendRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestFriendService_AcceptWithoutPending(t *testing.T) {
	fx := newFriendFixture(t)
	err := fx.svc.AcceptRequest(context.Background(), 2, 1)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
	assert.Equal(t, 0, fx.producer.count())
}

func TestFriendService_AcceptWrongDirection(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))

	// 发起方不能替接收方接受
	err := fx.svc.AcceptRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
	assertPairInvariants(t, fx.repo, 1, 2)
}

func TestFriendService_RejectCleansBothSides(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.RejectRequest(ctx, 2, 1))

	alice, _ := fx.repo.GetByID(ctx, 1)
	bob, _ := fx.repo.GetByID(ctx, 2)
	assert.Equal(t, PairNone, DerivePairState(alice, bob))
	assert.Equal(t, PairNone, DerivePairState(bob, alice))

	// 拒绝后发起方的 SentRequests 不能留下过期条目
	assert.Equal(t, 0, alice.SentRequests.Len())
	assertPairInvariants(t, fx.repo, 1, 2)

	// 拒绝后可以重新发起请求
	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	assertPairInvariants(t, fx.repo, 1, 2)
}

func TestFriendService_RejectWithoutPending(t *testing.T) {
	fx := newFriendFixture(t)
	err := fx.svc.RejectRequest(context.Background(), 2, 1)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
}

func TestFriendService_CancelRequest(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.CancelRequest(ctx, 1, 2))

	alice, _ := fx.repo.GetByID(ctx, 1)
	bob, _ := fx.repo.GetByID(ctx, 2)
	assert.Equal(t, PairNone, DerivePairState(alice, bob))
	assert.Equal(t, 0, bob.FriendRequests.Len())
	assertPairInvariants(t, fx.repo, 1, 2)

	// 没有待撤回的请求时报错
	err := fx.svc.CancelRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNoSentRequest)
}

func TestFriendService_RemoveFriend(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	require.NoError(t, fx.svc.RemoveFriend(ctx, 1, 2))

	alice, _ := fx.repo.GetByID(ctx, 1)
	bob, _ := fx.repo.GetByID(ctx, 2)
	assert.Equal(t, PairNone, DerivePairState(alice, bob))
	assert.Equal(t, PairNone, DerivePairState(bob, alice))
	assertPairInvariants(t, fx.repo, 1, 2)

	// 再次移除报错而不是静默成功
	err := fx.svc.RemoveFriend(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFriend)
}

func TestFriendService_IndependentPairs(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	// 1-2 成为好友不影响 1-3 的状态
	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	require.NoError(t, fx.svc.SendRequest(ctx, 1, 3))

	alice, _ := fx.repo.GetByID(ctx, 1)
	carol, _ := fx.repo.GetByID(ctx, 3)
	assert.Equal(t, PairRequested, DerivePairState(alice, carol))
	assert.True(t, alice.Friends.Contains(2))
	assertPairInvariants(t, fx.repo, 1, 2)
	assertPairInvariants(t, fx.repo, 1, 3)
	assertPairInvariants(t, fx.repo, 2, 3)
}

func TestFriendService_Lists(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.SendRequest(ctx, 3, 1))

	sent, err := fx.svc.ListSentRequests(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, uint(2), sent[0].ID)

	incoming, err := fx.svc.ListIncomingRequests(ctx, 1)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, uint(3), incoming[0].ID)

	friends, err := fx.svc.ListFriends(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, friends)

	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	friends, err = fx.svc.ListFriends(ctx, 1)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, uint(2), friends[0].ID)
}

func TestFriendService_FriendProgress(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	// 非好友不可见，即便存在待处理请求
	_, err := fx.svc.FriendProgress(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFriend)

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	_, err = fx.svc.FriendProgress(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFriend)

	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	dreams, err := fx.svc.FriendProgress(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, dreams, 1)
	assert.Equal(t, "Flying", dreams[0].Title)

	// 移除好友后访问权随之撤销
	require.NoError(t, fx.svc.RemoveFriend(ctx, 2, 1))
	_, err = fx.svc.FriendProgress(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFriend)
}

func TestFriendService_NotificationPayload(t *testing.T) {
	fx := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SendRequest(ctx, 1, 2))
	require.NoError(t, fx.svc.AcceptRequest(ctx, 2, 1))
	require.Equal(t, 2, fx.producer.count())

	var requested, accepted FriendEvent
	require.NoError(t, json.Unmarshal(fx.producer.messages[0], &requested))
	require.NoError(t, json.Unmarshal(fx.producer.messages[1], &accepted))

	assert.Equal(t, FriendEventRequested, requested.Type)
	assert.Equal(t, uint(1), requested.FromUserID)
	assert.Equal(t, uint(2), requested.ToUserID)
	assert.Equal(t, "bob@example.com", requested.ToEmail)

	// 接受事件的方向与请求相反
	assert.Equal(t, FriendEventAccepted, accepted.Type)
	assert.Equal(t, uint(2), accepted.FromUserID)
	assert.Equal(t, uint(1), accepted.ToUserID)
	assert.Equal(t, "alice@example.com", accepted.ToEmail)
	assert.WithinDuration(t, time.Now(), accepted.Timestamp, time.Minute)
}
