package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamjournal/internal/models"
	"dreamjournal/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrDreamNotFound        = errors.New("梦境记录不存在")
	ErrDreamContentRequired = errors.New("梦境内容不能为空")
)

// CreateDreamInput 是创建梦境记录的输入。
// 除 Content 外所有字段都是可选的，缺失时按默认规则补全。
type CreateDreamInput struct {
	Title       string
	Content     string
	DateOfDream *time.Time
	Tags        models.TagList
	Mood        string
	Rating      *int
}

// UpdateDreamInput 是部分更新的输入；nil 字段表示保持不变。
type UpdateDreamInput struct {
	Title       *string
	Content     *string
	DateOfDream *time.Time
	Tags        *models.TagList
	Mood        *string
	Rating      *int
}

// DreamService 实现以所有者为作用域的梦境记录 CRUD，
// 并在写入前应用显式的默认值替换规则（见 models 包）。
type DreamService interface {
	Create(ctx context.Context, ownerID uint, input CreateDreamInput) (*models.Dream, error)
	List(ctx context.Context, ownerID uint) ([]models.Dream, error)
	Get(ctx context.Context, ownerID, dreamID uint) (*models.Dream, error)
	Update(ctx context.Context, ownerID, dreamID uint, input UpdateDreamInput) (*models.Dream, error)
	Delete(ctx context.Context, ownerID, dreamID uint) error
}

type dreamService struct {
	dreamRepo storage.DreamRepository
}

// NewDreamService creates a new DreamService instance.
func NewDreamService(dreamRepo storage.DreamRepository) DreamService {
	return &dreamService{dreamRepo: dreamRepo}
}

// Create 创建一条梦境记录并补全缺失字段：
// 标题默认 "Untitled"，日期默认当前时间，非法情绪回落为 Neutral，
// 超范围评分被丢弃。
func (s *dreamService) Create(ctx context.Context, ownerID uint, input CreateDreamInput) (*models.Dream, error) {
	if input.Content == "" {
		return nil, ErrDreamContentRequired
	}

	title := input.Title
	if title == "" {
		title = models.DefaultDreamTitle
	}
	date := time.Now()
	if input.DateOfDream != nil {
		date = *input.DateOfDream
	}
	tags := input.Tags
	if tags == nil {
		tags = models.TagList{}
	}

	dream := &models.Dream{
		UserID:      ownerID,
		Title:       title,
		Content:     input.Content,
		DateOfDream: date,
		Tags:        tags,
		Mood:        models.ParseMood(input.Mood),
		Rating:      models.NormalizeRating(input.Rating),
	}

	if err := s.dreamRepo.Create(ctx, dream); err != nil {
		return nil, fmt.Errorf("创建梦境记录失败: %w", err)
	}
	return dream, nil
}

// List 返回用户自己的全部梦境记录。
func (s *dreamService) List(ctx context.Context, ownerID uint) ([]models.Dream, error) {
	dreams, err := s.dreamRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("获取梦境记录列表失败: %w", err)
	}
	if dreams == nil {
		dreams = []models.Dream{}
	}
	return dreams, nil
}

// Get 返回用户自己的单条梦境记录；他人的记录表现为不存在。
func (s *dreamService) Get(ctx context.Context, ownerID, dreamID uint) (*models.Dream, error) {
	dream, err := s.dreamRepo.GetByIDAndOwner(ctx, dreamID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDreamNotFound
		}
		return nil, fmt.Errorf("获取梦境记录 %d 失败: %w", dreamID, err)
	}
	return dream, nil
}

// Update 部分更新一条记录，对提供的字段应用与创建相同的归一化规则。
func (s *dreamService) Update(ctx context.Context, ownerID, dreamID uint, input UpdateDreamInput) (*models.Dream, error) {
	dream, err := s.dreamRepo.GetByIDAndOwner(ctx, dreamID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDreamNotFound
		}
		return nil, fmt.Errorf("获取梦境记录 %d 失败: %w", dreamID, err)
	}

	if input.Title != nil {
		dream.Title = *input.Title
		if dream.Title == "" {
			dream.Title = models.DefaultDreamTitle
		}
	}
	if input.Content != nil {
		if *input.Content == "" {
			return nil, ErrDreamContentRequired
		}
		dream.Content = *input.Content
	}
	if input.DateOfDream != nil {
		dream.DateOfDream = *input.DateOfDream
	}
	if input.Tags != nil {
		dream.Tags = *input.Tags
	}
	if input.Mood != nil {
		dream.Mood = models.ParseMood(*input.Mood)
	}
	if input.Rating != nil {
		dream.Rating = models.NormalizeRating(input.Rating)
	}

	if err := s.dreamRepo.Update(ctx, dream); err != nil {
		return nil, fmt.Errorf("更新梦境记录 %d 失败: %w", dreamID, err)
	}
	return dream, nil
}

// Delete 删除用户自己的一条梦境记录。
func (s *dreamService) Delete(ctx context.Context, ownerID, dreamID uint) error {
	deleted, err := s.dreamRepo.DeleteByIDAndOwner(ctx, dreamID, ownerID)
	if err != nil {
		return fmt.Errorf("删除梦境记录 %d 失败: %w", dreamID, err)
	}
	if !deleted {
		return ErrDreamNotFound
	}
	return nil
}
