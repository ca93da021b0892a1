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
	ErrAdminAlreadyExists      = errors.New("管理员已存在")
	ErrInvalidAdminCredentials = errors.New("无效的管理员凭证")
	ErrAdminNotFound           = errors.New("管理员不存在")
)

// 梦境所有者无法解析时的占位名。
const unresolvedOwnerName = "Unknown"

// DashboardStats 是管理端仪表盘的聚合计数。
type DashboardStats struct {
	Users  int64 `json:"users"`
	Dreams int64 `json:"dreams"`
}

// AdminService 定义了管理端的只读聚合视图与管理员账户操作。
type AdminService interface {
	Login(ctx context.Context, email, password string) (token string, admin *models.Admin, err error)
	CreateAdmin(ctx context.Context, name, email, password string, superAdmin bool) (*models.Admin, error)
	GetAdmin(ctx context.Context, adminID uint) (*models.Admin, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	ListAllUsers(ctx context.Context) ([]models.User, error)
	ListAllDreams(ctx context.Context) ([]models.DreamWithOwner, error)
}

type adminService struct {
	adminRepo storage.AdminRepository
	userRepo  storage.UserRepository
	dreamRepo storage.DreamRepository
	cfg       config.Config
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(
	adminRepo storage.AdminRepository,
	userRepo storage.UserRepository,
	dreamRepo storage.DreamRepository,
	cfg config.Config,
) AdminService {
	return &adminService{
		adminRepo: adminRepo,
		userRepo:  userRepo,
		dreamRepo: dreamRepo,
		cfg:       cfg,
	}
}

// Login 验证管理员凭证并签发携带 type=admin 的 JWT。
func (s *adminService) Login(ctx context.Context, email, password string) (string, *models.Admin, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidAdminCredentials
	} else if err != nil {
		return "", nil, fmt.Errorf("查找管理员失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, admin.PasswordHash) {
		return "", nil, ErrInvalidAdminCredentials
	}

	token, err := auth.GenerateToken(admin.ID, admin.Email, auth.TokenTypeAdmin, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成管理员令牌失败: %w", err)
	}
	return token, admin, nil
}

// CreateAdmin 创建一个新的管理员账户。
func (s *adminService) CreateAdmin(ctx context.Context, name, email, password string, superAdmin bool) (*models.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.adminRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrAdminAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查管理员邮箱时出错: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	admin := &models.Admin{
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		SuperAdmin:   superAdmin,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("创建管理员失败: %w", err)
	}
	return admin, nil
}

// GetAdmin 按ID读取管理员，供管理端认证中间件确认账户仍然存在。
func (s *adminService) GetAdmin(ctx context.Context, adminID uint) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("查找管理员 %d 失败: %w", adminID, err)
	}
	return admin, nil
}

// DashboardStats 返回用户与梦境记录的总数。
func (s *adminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计用户数失败: %w", err)
	}
	dreams, err := s.dreamRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计梦境记录数失败: %w", err)
	}
	return &DashboardStats{Users: users, Dreams: dreams}, nil
}

// ListAllUsers 返回全部用户（密码哈希已清除）。
func (s *adminService) ListAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取用户列表失败: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// ListAllDreams 返回全部梦境记录，并把所有者展平为公开字段；
// 所有者无法解析时替换为占位信息。
func (s *adminService) ListAllDreams(ctx context.Context) ([]models.DreamWithOwner, error) {
	dreams, err := s.dreamRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取梦境记录列表失败: %w", err)
	}

	ownerIDs := make([]uint, 0, len(dreams))
	seen := make(map[uint]struct{}, len(dreams))
	for _, d := range dreams {
		if _, ok := seen[d.UserID]; !ok {
			seen[d.UserID] = struct{}{}
			ownerIDs = append(ownerIDs, d.UserID)
		}
	}

	owners := make(map[uint]*models.UserBasicInfo, len(ownerIDs))
	infos, err := s.userRepo.GetBasicInfoByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("解析梦境所有者失败: %w", err)
	}
	for _, info := range infos {
		owners[info.ID] = info
	}

	result := make([]models.DreamWithOwner, 0, len(dreams))
	for _, d := range dreams {
		owner := models.UserBasicInfo{Name: unresolvedOwnerName, Email: ""}
		if info, ok := owners[d.UserID]; ok {
			owner = *info
		}
		result = append(result, models.DreamWithOwner{Dream: d, Owner: owner})
	}
	return result, nil
}
