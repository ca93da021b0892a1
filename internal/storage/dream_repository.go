package storage

import (
	"context"

	"gorm.io/gorm"

	"dreamjournal/internal/models"
)

// DreamRepository defines the interface for dream record data operations.
// 除 ListAll/Count（管理端）外，所有读写都以所有者ID为作用域。
type DreamRepository interface {
	Create(ctx context.Context, dream *models.Dream) error
	GetByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (*models.Dream, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Dream, error)
	Update(ctx context.Context, dream *models.Dream) error
	DeleteByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (bool, error)
	ListAll(ctx context.Context) ([]models.Dream, error)
	Count(ctx context.Context) (int64, error)
}

type gormDreamRepository struct {
	db *gorm.DB
}

// NewGormDreamRepository creates a new GORM-based DreamRepository.
func NewGormDreamRepository(db *gorm.DB) DreamRepository {
	return &gormDreamRepository{db: db}
}

func (r *gormDreamRepository) Create(ctx context.Context, dream *models.Dream) error {
	return r.db.WithContext(ctx).Create(dream).Error
}

// GetByIDAndOwner 按所有者作用域读取单条记录；他人的记录表现为不存在。
func (r *gormDreamRepository) GetByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (*models.Dream, error) {
	var dream models.Dream
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", dreamID, ownerID).First(&dream).Error
	if err != nil {
		return nil, err
	}
	return &dream, nil
}

// ListByOwner 返回某用户的全部梦境记录，按创建时间倒序。
func (r *gormDreamRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Dream, error) {
	var dreams []models.Dream
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&dreams).Error
	return dreams, err
}

func (r *gormDreamRepository) Update(ctx context.Context, dream *models.Dream) error {
	if dream.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(dream).Error
}

// DeleteByIDAndOwner 删除记录，返回是否确有记录被删除。
func (r *gormDreamRepository) DeleteByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", dreamID, ownerID).Delete(&models.Dream{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListAll returns every dream record. Intended for the admin surface only.
func (r *gormDreamRepository) ListAll(ctx context.Context) ([]models.Dream, error) {
	var dreams []models.Dream
	err := r.db.WithContext(ctx).Order("id").Find(&dreams).Error
	return dreams, err
}

// Count returns the total number of dream records.
func (r *gormDreamRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Dream{}).Count(&count).Error
	return count, err
}
