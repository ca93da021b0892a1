package services

import (
	"context"
	"testing"
	"time"

	"dreamjournal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memDreamRepository 是 DreamRepository 的内存实现。
type memDreamRepository struct {
	nextID uint
	dreams map[uint]*models.Dream
}

func newMemDreamRepository() *memDreamRepository {
	return &memDreamRepository{nextID: 1, dreams: make(map[uint]*models.Dream)}
}

func (m *memDreamRepository) Create(ctx context.Context, dream *models.Dream) error {
	dream.ID = m.nextID
	m.nextID++
	copied := *dream
	m.dreams[dream.ID] = &copied
	return nil
}

func (m *memDreamRepository) GetByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (*models.Dream, error) {
	d, ok := m.dreams[dreamID]
	if !ok || d.UserID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memDreamRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Dream, error) {
	var out []models.Dream
	for _, d := range m.dreams {
		if d.UserID == ownerID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDreamRepository) Update(ctx context.Context, dream *models.Dream) error {
	if _, ok := m.dreams[dream.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *dream
	m.dreams[dream.ID] = &copied
	return nil
}

func (m *memDreamRepository) DeleteByIDAndOwner(ctx context.Context, dreamID, ownerID uint) (bool, error) {
	d, ok := m.dreams[dreamID]
	if !ok || d.UserID != ownerID {
		return false, nil
	}
	delete(m.dreams, dreamID)
	return true, nil
}

func (m *memDreamRepository) ListAll(ctx context.Context) ([]models.Dream, error) {
	var out []models.Dream
	for _, d := range m.dreams {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memDreamRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(m.dreams)), nil
}

func TestDreamService_CreateAppliesDefaults(t *testing.T) {
	svc := NewDreamService(newMemDreamRepository())
	ctx := context.Background()

	badRating := 9
	dream, err := svc.Create(ctx, 1, CreateDreamInput{
		Content: "A strange corridor.",
		Mood:    "weird",
		Rating:  &badRating,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DefaultDreamTitle, dream.Title)
	assert.Equal(t, models.MoodNeutral, dream.Mood)
	assert.Nil(t, dream.Rating, "out-of-range rating is discarded")
	assert.WithinDuration(t, time.Now(), dream.DateOfDream, time.Minute)
	assert.NotNil(t, dream.Tags)
	assert.Equal(t, uint(1), dream.UserID)
}

func TestDreamService_CreateKeepsProvidedValues(t *testing.T) {
	svc := NewDreamService(newMemDreamRepository())
	ctx := context.Background()

	rating := 5
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	dream, err := svc.Create(ctx, 1, CreateDreamInput{
		Title:       "The maze",
		Content:     "Endless corridors.",
		DateOfDream: &date,
		Tags:        models.TagList{"maze"},
		Mood:        string(models.MoodScary),
		Rating:      &rating,
	})
	require.NoError(t, err)

	assert.Equal(t, "The maze", dream.Title)
	assert.Equal(t, models.MoodScary, dream.Mood)
	assert.Equal(t, date, dream.DateOfDream)
	require.NotNil(t, dream.Rating)
	assert.Equal(t, 5, *dream.Rating)
}

func TestDreamService_CreateRequiresContent(t *testing.T) {
	svc := NewDreamService(newMemDreamRepository())
	_, err := svc.Create(context.Background(), 1, CreateDreamInput{Title: "No content"})
	assert.ErrorIs(t, err, ErrDreamContentRequired)
}

func TestDreamService_OwnerScoping(t *testing.T) {
	repo := newMemDreamRepository()
	svc := NewDreamService(repo)
	ctx := context.Background()

	dream, err := svc.Create(ctx, 1, CreateDreamInput{Content: "Mine."})
	require.NoError(t, err)

	// 其他用户读取、更新、删除都表现为不存在
	_, err = svc.Get(ctx, 2, dream.ID)
	assert.ErrorIs(t, err, ErrDreamNotFound)

	title := "hijacked"
	_, err = svc.Update(ctx, 2, dream.ID, UpdateDreamInput{Title: &title})
	assert.ErrorIs(t, err, ErrDreamNotFound)

	err = svc.Delete(ctx, 2, dream.ID)
	assert.ErrorIs(t, err, ErrDreamNotFound)

	// 所有者自己正常访问
	got, err := svc.Get(ctx, 1, dream.ID)
	require.NoError(t, err)
	assert.Equal(t, dream.ID, got.ID)
}

func TestDreamService_UpdatePartial(t *testing.T) {
	svc := NewDreamService(newMemDreamRepository())
	ctx := context.Background()

	rating := 3
	dream, err := svc.Create(ctx, 1, CreateDreamInput{
		Title:   "Original",
		Content: "Original content.",
		Rating:  &rating,
	})
	require.NoError(t, err)

	// 只更新情绪，其余字段保持不变
	mood := string(models.MoodHappy)
	updated, err := svc.Update(ctx, 1, dream.ID, UpdateDreamInput{Mood: &mood})
	require.NoError(t, err)
	assert.Equal(t, models.MoodHappy, updated.Mood)
	assert.Equal(t, "Original", updated.Title)
	assert.Equal(t, "Original content.", updated.Content)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 3, *updated.Rating)

	// 标题清空时替换为默认值
	empty := ""
	updated, err = svc.Update(ctx, 1, dream.ID, UpdateDreamInput{Title: &empty})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDreamTitle, updated.Title)

	// 内容不允许清空
	_, err = svc.Update(ctx, 1, dream.ID, UpdateDreamInput{Content: &empty})
	assert.ErrorIs(t, err, ErrDreamContentRequired)

	// 超范围评分被丢弃
	bad := 0
	updated, err = svc.Update(ctx, 1, dream.ID, UpdateDreamInput{Rating: &bad})
	require.NoError(t, err)
	assert.Nil(t, updated.Rating)
}

func TestDreamService_Delete(t *testing.T) {
	svc := NewDreamService(newMemDreamRepository())
	ctx := context.Background()

	dream, err := svc.Create(ctx, 1, CreateDreamInput{Content: "Gone soon."})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, dream.ID))

	_, err = svc.Get(ctx, 1, dream.ID)
	assert.ErrorIs(t, err, ErrDreamNotFound)

	err = svc.Delete(ctx, 1, dream.ID)
	assert.ErrorIs(t, err, ErrDreamNotFound)
}
