package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dreamjournal/internal/models"
)

// UserRepository defines the interface for user data operations.
//
// Transaction 在一个数据库事务中运行 fn，并向其传入绑定到该事务的仓库实例；
// GetByIDForUpdate 在事务内对用户行加排它锁（SELECT ... FOR UPDATE）。
// 好友协议依赖这两者来为一对用户串行化双记录的读-改-写。
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Transaction(ctx context.Context, fn func(repo UserRepository) error) error
	SearchUsers(ctx context.Context, query string, excludeUserID uint, limit int) ([]*models.UserBasicInfo, error)
	GetBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error)
	ListAll(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email (case-insensitive; emails are stored lowercase).
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 以行锁读取用户。只在 Transaction 内调用才有意义。
func (r *gormUserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// Transaction runs fn inside a database transaction.
func (r *gormUserRepository) Transaction(ctx context.Context, fn func(repo UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormUserRepository{db: tx})
	})
}

// SearchUsers 在 name 和 email 字段上做大小写不敏感的子串匹配，
// 排除调用者自己，结果数量由 limit 截断。
func (r *gormUserRepository) SearchUsers(ctx context.Context, query string, excludeUserID uint, limit int) ([]*models.UserBasicInfo, error) {
	var results []*models.UserBasicInfo
	searchTerm := "%" + strings.ToLower(query) + "%"

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?) AND id != ?", searchTerm, searchTerm, excludeUserID).
		Select("id", "name", "email").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return results, nil // 搜索无结果不是错误
		}
		return nil, err
	}
	return results, nil
}

// GetBasicInfoByIDs retrieves minimal public user info for a list of user IDs.
func (r *gormUserRepository) GetBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	basicInfos := []*models.UserBasicInfo{}
	if len(userIDs) == 0 {
		return basicInfos, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "name", "email").
		Where("id IN ?", userIDs).
		Find(&basicInfos).Error
	if err != nil {
		return nil, err
	}
	return basicInfos, nil
}

// ListAll returns every registered user. Intended for the admin surface only.
func (r *gormUserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("id").Find(&users).Error
	return users, err
}

// Count returns the total number of registered users.
func (r *gormUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}
