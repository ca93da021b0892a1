package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dreamjournal/internal/auth"
	"dreamjournal/internal/config"
	"dreamjournal/internal/models"
	"dreamjournal/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("无效的邮箱或密码")
	ErrUserNotFound       = errors.New("用户未找到")
)

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo storage.UserRepository
	cfg      config.Config
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, cfg config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Register 处理用户注册逻辑。邮箱统一小写后存储，作为唯一登录标识。
func (s *authService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查邮箱时出错: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	newUser := &models.User{
		Name:           name,
		Email:          email,
		PasswordHash:   hashedPassword,
		Friends:        models.NewIDSet(),
		FriendRequests: models.NewIDSet(),
		SentRequests:   models.NewIDSet(),
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return newUser, nil
}

// Login 处理用户登录逻辑，成功后签发携带 type=user 的 JWT。
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrUserNotFound
	} else if err != nil {
		return "", nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Email, auth.TokenTypeUser, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	return token, user, nil
}
