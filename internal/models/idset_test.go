package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSet_AddRemoveContains(t *testing.T) {
	s := NewIDSet()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(7))

	s.Add(7)
	s.Add(3)
	s.Add(7) // 重复添加不生效
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(7))
	assert.True(t, s.Contains(3))

	s.Remove(7)
	assert.False(t, s.Contains(7))
	assert.Equal(t, 1, s.Len())

	// 移除不存在的成员是空操作
	s.Remove(99)
	assert.Equal(t, 1, s.Len())
}

func TestIDSet_AddOnNil(t *testing.T) {
	// 从数据库读出的空集合可能是 nil map，Add 必须仍然可用
	var s IDSet
	s.Add(5)
	assert.True(t, s.Contains(5))
}

func TestIDSet_IDsSorted(t *testing.T) {
	s := NewIDSet()
	s.Add(30)
	s.Add(1)
	s.Add(12)
	assert.Equal(t, []uint{1, 12, 30}, s.IDs())
}

func TestIDSet_JSONRoundTrip(t *testing.T) {
	s := NewIDSet()
	s.Add(2)
	s.Add(1)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2]", string(data))

	var decoded IDSet
	require.NoError(t, json.Unmarshal([]byte("[4,4,9]"), &decoded))
	assert.Equal(t, 2, decoded.Len())
	assert.True(t, decoded.Contains(4))
	assert.True(t, decoded.Contains(9))
}

func TestIDSet_ScanValue(t *testing.T) {
	s := NewIDSet()
	s.Add(8)

	v, err := s.Value()
	require.NoError(t, err)

	var decoded IDSet
	require.NoError(t, decoded.Scan(v))
	assert.True(t, decoded.Contains(8))

	// NULL 列扫描为空集合
	var fromNull IDSet
	require.NoError(t, fromNull.Scan(nil))
	assert.Equal(t, 0, fromNull.Len())
}
