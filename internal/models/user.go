package models

// User 代表系统中的注册用户。
// 三个关系集合冗余地编码了与其他用户的好友状态：
// A 在 B 的 Friends 中当且仅当 B 也在 A 的 Friends 中（对称不变量）；
// A 在 B 的 FriendRequests 中当且仅当 B 在 A 的 SentRequests 中。
// 这些集合只能由好友协议操作（services.FriendService）修改。
type User struct {
	BaseModel
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Email        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"` // 存储时统一转为小写
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`                 // 不暴露密码哈希

	Friends        IDSet `gorm:"type:jsonb;default:'[]'" json:"friends"`        // 已确认的好友
	FriendRequests IDSet `gorm:"type:jsonb;default:'[]'" json:"friendRequests"` // 收到的待处理请求（发送者ID）
	SentRequests   IDSet `gorm:"type:jsonb;default:'[]'" json:"sentRequests"`   // 发出的待处理请求（接收者ID）
}

// UserBasicInfo holds minimal public information about a user.
// Used for friend lists, request lists and search results.
type UserBasicInfo struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BasicInfo returns the public view of the user.
func (u *User) BasicInfo() *UserBasicInfo {
	return &UserBasicInfo{ID: u.ID, Name: u.Name, Email: u.Email}
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
