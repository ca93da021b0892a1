package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mood 是梦境情绪的封闭枚举。
type Mood string

const (
	MoodHappy    Mood = "Happy"
	MoodScary    Mood = "Scary"
	MoodSad      Mood = "Sad"
	MoodExciting Mood = "Exciting"
	MoodNeutral  Mood = "Neutral"
)

// DefaultDreamTitle is substituted when a dream is created without a title.
const DefaultDreamTitle = "Untitled"

// ParseMood 将任意输入归一化为合法的 Mood。
// 缺失或非法的值一律回落为 Neutral，不报错。
func ParseMood(s string) Mood {
	switch Mood(s) {
	case MoodHappy, MoodScary, MoodSad, MoodExciting, MoodNeutral:
		return Mood(s)
	default:
		return MoodNeutral
	}
}

// NormalizeRating 校验评分。合法范围是 1 到 5；
// 超出范围或缺失的评分被丢弃（返回 nil），而不是报错。
func NormalizeRating(r *int) *int {
	if r == nil || *r < 1 || *r > 5 {
		return nil
	}
	return r
}

// TagList 是梦境标签的有序去重序列，存储为 jsonb 数组。
// 反序列化时同时接受 JSON 数组和逗号分隔的字符串两种输入形式。
type TagList []string

// NormalizeTags 去除空白、丢弃空标签并保序去重。
func NormalizeTags(tags []string) TagList {
	seen := make(map[string]struct{}, len(tags))
	out := make(TagList, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnmarshalJSON accepts either ["a","b"] or "a, b" and normalizes the result.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = NormalizeTags(list)
		return nil
	}
	var delimited string
	if err := json.Unmarshal(data, &delimited); err != nil {
		return fmt.Errorf("标签必须是字符串数组或逗号分隔的字符串")
	}
	*t = NormalizeTags(strings.Split(delimited, ","))
	return nil
}

// Value 实现 driver.Valuer，用于写入 jsonb 列。
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		t = TagList{}
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，用于从 jsonb 列读取。
func (t *TagList) Scan(value interface{}) error {
	if value == nil {
		*t = TagList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]string)(t))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(t))
	default:
		return fmt.Errorf("无法将 %T 扫描到 TagList", value)
	}
}

// Dream 代表一条梦境记录，按所有者（UserID）作用域访问。
type Dream struct {
	BaseModel
	UserID      uint      `gorm:"not null;index" json:"userId"`
	Title       string    `gorm:"type:varchar(255);not null;default:'Untitled'" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	DateOfDream time.Time `gorm:"not null" json:"dateOfDream"`
	Tags        TagList   `gorm:"type:jsonb;default:'[]'" json:"tags"`
	Mood        Mood      `gorm:"type:varchar(20);not null;default:'Neutral'" json:"mood"`
	Rating      *int      `json:"rating,omitempty"` // 1-5，可选
}

// DreamWithOwner 是管理端列表用的 DTO，将所有者展平为公开字段。
type DreamWithOwner struct {
	Dream
	Owner UserBasicInfo `json:"user"`
}

// TableName 指定 Dream 模型的表名。
func (Dream) TableName() string {
	return "dreams"
}
