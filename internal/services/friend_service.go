package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"dreamjournal/internal/config"
	"dreamjournal/internal/kafka"
	"dreamjournal/internal/models"
	"dreamjournal/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrFriendRequestSelf   = errors.New("不能添加自己为好友")
	ErrFriendUserNotFound  = errors.New("目标用户不存在")
	ErrAlreadyFriends      = errors.New("你们已经是好友了")
	ErrFriendRequestExists = errors.New("好友请求已发送")
	ErrPeerRequestPending  = errors.New("对方已向你发送好友请求，请直接处理")
	ErrNoPendingRequest    = errors.New("该用户没有发给你的待处理请求")
	ErrNoSentRequest       = errors.New("没有发给该用户的待处理请求")
	ErrNotFriend           = errors.New("该用户不是你的好友")
)

// PairState 是一对用户之间互斥的逻辑关系状态。
// 它从两条用户记录的集合中推导而来，从不单独存储。
type PairState int

const (
	PairNone      PairState = iota // 双方互不出现在对方的任何集合中
	PairRequested                  // self 已向 other 发出待处理请求
	PairIncoming                   // other 已向 self 发出待处理请求
	PairFriends                    // 双方已互为好友
)

// DerivePairState 推导 self 相对于 other 的关系状态。
func DerivePairState(self, other *models.User) PairState {
	switch {
	case self.Friends.Contains(other.ID):
		return PairFriends
	case self.SentRequests.Contains(other.ID):
		return PairRequested
	case self.FriendRequests.Contains(other.ID):
		return PairIncoming
	default:
		return PairNone
	}
}

// 好友通知事件类型。
const (
	FriendEventRequested = "friend_request"
	FriendEventAccepted  = "request_accepted"
)

// FriendEvent defines the structure for Kafka messages emitted by protocol transitions.
// 事件携带展示所需的全部字段，消费者无需回查数据库。
type FriendEvent struct {
	Type       string    `json:"type"`
	FromUserID uint      `json:"fromUserId"`
	FromName   string    `json:"fromName"`
	ToUserID   uint      `json:"toUserId"`
	ToName     string    `json:"toName"`
	ToEmail    string    `json:"toEmail"`
	Timestamp  time.Time `json:"timestamp"`
}

// FriendService 实现好友关系协议：四个状态转移操作、只读列表
// 以及好友进度视图。所有双记录转移都在单个数据库事务中执行，
// 事务内按ID升序对两行加锁，使同一对用户的并发操作串行化。
type FriendService interface {
	SendRequest(ctx context.Context, selfID, otherID uint) error
	AcceptRequest(ctx context.Context, selfID, otherID uint) error
	RejectRequest(ctx context.Context, selfID, otherID uint) error
	CancelRequest(ctx context.Context, selfID, otherID uint) error
	RemoveFriend(ctx context.Context, selfID, otherID uint) error
	ListFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	ListIncomingRequests(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	ListSentRequests(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	FriendProgress(ctx context.Context, selfID, friendID uint) ([]models.Dream, error)
}

type friendService struct {
	userRepo  storage.UserRepository
	dreamRepo storage.DreamRepository
	producer  kafka.MessageProducer
	kafkaCfg  config.KafkaConfig
}

// NewFriendService creates a new FriendService instance.
// producer 可以为 nil，此时协议转移不产生通知。
func NewFriendService(
	userRepo storage.UserRepository,
	dreamRepo storage.DreamRepository,
	producer kafka.MessageProducer,
	kafkaCfg config.KafkaConfig,
) FriendService {
	return &friendService{
		userRepo:  userRepo,
		dreamRepo: dreamRepo,
		producer:  producer,
		kafkaCfg:  kafkaCfg,
	}
}

// lockPair 在事务内按ID升序锁定并返回 (self, other) 两条用户记录。
// 升序加锁保证同一对用户的并发事务不会互相死锁。
func lockPair(ctx context.Context, repo storage.UserRepository, selfID, otherID uint) (*models.User, *models.User, error) {
	firstID, secondID := selfID, otherID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := repo.GetByIDForUpdate(ctx, firstID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrFriendUserNotFound
		}
		return nil, nil, fmt.Errorf("锁定用户 %d 失败: %w", firstID, err)
	}
	second, err := repo.GetByIDForUpdate(ctx, secondID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrFriendUserNotFound
		}
		return nil, nil, fmt.Errorf("锁定用户 %d 失败: %w", secondID, err)
	}

	if first.ID == selfID {
		return first, second, nil
	}
	return second, first, nil
}

// saveBoth 在同一事务中持久化两条用户记录。
func saveBoth(ctx context.Context, repo storage.UserRepository, a, b *models.User) error {
	if err := repo.Update(ctx, a); err != nil {
		return fmt.Errorf("保存用户 %d 失败: %w", a.ID, err)
	}
	if err := repo.Update(ctx, b); err != nil {
		return fmt.Errorf("保存用户 %d 失败: %w", b.ID, err)
	}
	return nil
}

// SendRequest 将一对用户从 NONE 转移到 REQUESTED(self→other)。
func (s *friendService) SendRequest(ctx context.Context, selfID, otherID uint) error {
	if selfID == otherID {
		return ErrFriendRequestSelf
	}

	var self, other *models.User
	err := s.userRepo.Transaction(ctx, func(repo storage.UserRepository) error {
		var err error
		self, other, err = lockPair(ctx, repo, selfID, otherID)
		if err != nil {
			return err
		}

		switch DerivePairState(self, other) {
		case PairFriends:
			return ErrAlreadyFriends
		case PairRequested:
			return ErrFriendRequestExists
		case PairIncoming:
			return ErrPeerRequestPending
		}

		self.SentRequests.Add(other.ID)
		other.FriendRequests.Add(self.ID)
		return saveBoth(ctx, repo, self, other)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, FriendEventRequested, self, other)
	return nil
}

// AcceptRequest 将一对用户从 REQUESTED(other→self) 转移到 FRIENDS。
func (s *friendService) AcceptRequest(ctx context.Context, selfID, otherID uint) error {
	if selfID == otherID {
		return ErrNoPendingRequest
	}

	var self, other *models.User
	err := s.userRepo.Transaction(ctx, func(repo storage.UserRepository) error {
		var err error
		self, other, err = lockPair(ctx, repo, selfID, otherID)
		if err != nil {
			return err
		}

		if DerivePairState(self, other) != PairIncoming {
			return ErrNoPendingRequest
		}

		self.Friends.Add(other.ID)
		other.Friends.Add(self.ID)
		self.FriendRequests.Remove(other.ID)
		other.SentRequests.Remove(self.ID)
		return saveBoth(ctx, repo, self, other)
	})
	if err != nil {
		return err
	}

	// 通知的方向与请求相反：接受者是发出通知的一方
	s.notify(ctx, FriendEventAccepted, self, other)
	return nil
}

// RejectRequest 取消一条指向 self 的待处理请求。
// 两侧集合都被清理：对方的 SentRequests 不会留下过期条目。
func (s *friendService) RejectRequest(ctx context.Context, selfID, otherID uint) error {
	if selfID == otherID {
		return ErrNoPendingRequest
	}

	return s.userRepo.Transaction(ctx, func(repo storage.UserRepository) error {
		self, other, err := lockPair(ctx, repo, selfID, otherID)
		if err != nil {
			return err
		}

		if DerivePairState(self, other) != PairIncoming {
			return ErrNoPendingRequest
		}

		self.FriendRequests.Remove(other.ID)
		other.SentRequests.Remove(self.ID)
		return saveBoth(ctx, repo, self, other)
	})
}

// CancelRequest 撤回一条由 self 发出且尚未被处理的请求。
func (s *friendService) CancelRequest(ctx context.Context, selfID, otherID uint) error {
	if selfID == otherID {
		return ErrNoSentRequest
	}

	return s.userRepo.Transaction(ctx, func(repo storage.UserRepository) error {
		self, other, err := lockPair(ctx, repo, selfID, otherID)
		if err != nil {
			return err
		}

		if DerivePairState(self, other) != PairRequested {
			return ErrNoSentRequest
		}

		self.SentRequests.Remove(other.ID)
		other.FriendRequests.Remove(self.ID)
		return saveBoth(ctx, repo, self, other)
	})
}

// RemoveFriend 将一对用户从 FRIENDS 转移回 NONE。
func (s *friendService) RemoveFriend(ctx context.Context, selfID, otherID uint) error {
	if selfID == otherID {
		return ErrNotFriend
	}

	return s.userRepo.Transaction(ctx, func(repo storage.UserRepository) error {
		self, other, err := lockPair(ctx, repo, selfID, otherID)
		if err != nil {
			return err
		}

		if DerivePairState(self, other) != PairFriends {
			return ErrNotFriend
		}

		self.Friends.Remove(other.ID)
		other.Friends.Remove(self.ID)
		return saveBoth(ctx, repo, self, other)
	})
}

// ListFriends retrieves the basic info for all confirmed friends of the given user.
func (s *friendService) ListFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	return s.listSet(ctx, userID, func(u *models.User) models.IDSet { return u.Friends })
}

// ListIncomingRequests retrieves the senders of pending requests addressed to the user.
func (s *friendService) ListIncomingRequests(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	return s.listSet(ctx, userID, func(u *models.User) models.IDSet { return u.FriendRequests })
}

// ListSentRequests retrieves the recipients of the user's pending outgoing requests.
func (s *friendService) ListSentRequests(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	return s.listSet(ctx, userID, func(u *models.User) models.IDSet { return u.SentRequests })
}

func (s *friendService) listSet(ctx context.Context, userID uint, pick func(*models.User) models.IDSet) ([]*models.UserBasicInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFriendUserNotFound
		}
		return nil, fmt.Errorf("读取用户 %d 失败: %w", userID, err)
	}

	ids := pick(user).IDs()
	if len(ids) == 0 {
		return []*models.UserBasicInfo{}, nil
	}

	infos, err := s.userRepo.GetBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("读取用户信息失败: %w", err)
	}
	return infos, nil
}

// FriendProgress 返回某位已确认好友的梦境记录。
// 只有当双方处于 FRIENDS 状态时才允许访问。
func (s *friendService) FriendProgress(ctx context.Context, selfID, friendID uint) ([]models.Dream, error) {
	self, err := s.userRepo.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFriendUserNotFound
		}
		return nil, fmt.Errorf("读取用户 %d 失败: %w", selfID, err)
	}

	if !self.Friends.Contains(friendID) {
		return nil, ErrNotFriend
	}

	dreams, err := s.dreamRepo.ListByOwner(ctx, friendID)
	if err != nil {
		return nil, fmt.Errorf("读取好友 %d 的梦境记录失败: %w", friendID, err)
	}
	return dreams, nil
}

// notify 在转移提交后发布一条通知事件。发送是尽力而为的：
// 任何失败只记录日志，绝不作为协议失败向调用者传播，也不重试。
func (s *friendService) notify(ctx context.Context, eventType string, from, to *models.User) {
	if s.producer == nil {
		return
	}

	event := FriendEvent{
		Type:       eventType,
		FromUserID: from.ID,
		FromName:   from.Name,
		ToUserID:   to.ID,
		ToName:     to.Name,
		ToEmail:    to.Email,
		Timestamp:  time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("警告: 序列化好友通知事件失败 (%d -> %d): %v", from.ID, to.ID, err)
		return
	}

	// 以无序对为 key，同一对用户的事件落在同一分区
	lo, hi := from.ID, to.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	key := []byte(fmt.Sprintf("%d-%d", lo, hi))

	if err := s.producer.SendMessage(ctx, s.kafkaCfg.FriendEventTopic, key, payload); err != nil {
		log.Printf("警告: 发布好友通知事件到 topic %s 失败 (%d -> %d): %v", s.kafkaCfg.FriendEventTopic, from.ID, to.ID, err)
	}
}
