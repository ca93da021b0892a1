package storage

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"dreamjournal/internal/models"
)

// AdminRepository defines the interface for administrator account data operations.
type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByID(ctx context.Context, id uint) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type gormAdminRepository struct {
	db *gorm.DB
}

// NewGormAdminRepository creates a new GORM-based AdminRepository.
func NewGormAdminRepository(db *gorm.DB) AdminRepository {
	return &gormAdminRepository{db: db}
}

func (r *gormAdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *gormAdminRepository) GetByID(ctx context.Context, id uint) (*models.Admin, error) {
	var admin models.Admin
	err := r.db.WithContext(ctx).First(&admin, id).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *gormAdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
