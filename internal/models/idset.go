package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// IDSet 是用户ID的显式集合类型，是好友关系三个集合列的存储表示。
// 序列化为排好序的 jsonb 数组；成员资格、添加和移除都是 O(1)。
type IDSet map[uint]struct{}

// NewIDSet 创建一个空集合。
func NewIDSet() IDSet {
	return make(IDSet)
}

// Add 将 id 加入集合。重复添加是空操作。
// 接收者为 nil map 时（例如从 NULL 列扫描而来）会先分配。
func (s *IDSet) Add(id uint) {
	if *s == nil {
		*s = make(IDSet)
	}
	(*s)[id] = struct{}{}
}

// Remove 将 id 移出集合。移除不存在的成员是空操作。
func (s IDSet) Remove(id uint) {
	delete(s, id)
}

// Contains 报告 id 是否在集合中。
func (s IDSet) Contains(id uint) bool {
	_, ok := s[id]
	return ok
}

// Len 返回集合的成员数。
func (s IDSet) Len() int {
	return len(s)
}

// IDs 返回按升序排列的全部成员。
func (s IDSet) IDs() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalJSON 将集合编码为排好序的数组，保证输出稳定。
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON 从数组解码，重复成员被折叠。
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []uint
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("IDSet 必须是数字数组: %w", err)
	}
	*s = make(IDSet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}

// Value 实现 driver.Valuer，用于写入 jsonb 列。
func (s IDSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，用于从 jsonb 列读取。NULL 读取为空集合。
func (s *IDSet) Scan(value interface{}) error {
	if value == nil {
		*s = make(IDSet)
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("无法将 %T 扫描到 IDSet", value)
	}
}
