package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dreamjournal/internal/models"
	"dreamjournal/internal/storage"

	"gorm.io/gorm"
)

// 搜索结果的数量上限。
const userSearchLimit = 5

// UserService 定义了用户资料与查找服务的接口。
type UserService interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, name, email string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.UserBasicInfo, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]*models.UserBasicInfo, error)
}

// userService 是 UserService 的实现。
type userService struct {
	userRepo storage.UserRepository
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo storage.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetProfile 获取当前登录用户的完整资料。
func (s *userService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile 更新用户的 name / email 字段。空值表示不修改。
// 新邮箱统一转为小写，且不能与其他用户冲突。
func (s *userService) UpdateProfile(ctx context.Context, userID uint, name, email string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("更新用户资料失败，用户 %d 未找到: %w", userID, err)
	}

	updated := false
	if name != "" && user.Name != name {
		user.Name = name
		updated = true
	}
	if email != "" {
		email = strings.ToLower(strings.TrimSpace(email))
		if user.Email != email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			if err == nil && existing.ID != userID {
				return nil, ErrUserAlreadyExists
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("检查邮箱时出错: %w", err)
			}
			user.Email = email
			updated = true
		}
	}

	if updated {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("更新用户 %d 资料失败: %w", userID, err)
		}
	}
	user.PasswordHash = ""
	return user, nil
}

// FindByEmail 按邮箱精确查找用户（大小写不敏感），只返回公开字段。
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.UserBasicInfo, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
	}
	return user.BasicInfo(), nil
}

// SearchUsers 按子串搜索其他用户，结果不超过 userSearchLimit 条。
func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]*models.UserBasicInfo, error) {
	results, err := s.userRepo.SearchUsers(ctx, query, currentUserID, userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("搜索用户失败: %w", err)
	}
	if results == nil {
		results = []*models.UserBasicInfo{}
	}
	return results, nil
}
