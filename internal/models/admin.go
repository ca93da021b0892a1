package models

// Admin 代表管理员账户，与普通用户分表存储。
// 管理员令牌携带 type=admin 鉴别字段，见 internal/auth。
type Admin struct {
	BaseModel
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Email        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	SuperAdmin   bool   `gorm:"default:false" json:"superAdmin"`
}

// TableName 指定 Admin 模型的表名。
func (Admin) TableName() string {
	return "admins"
}
