package service

import (
	"fmt"
	"shortlink-platform/internal/model"
	"shortlink-platform/internal/shortcode"
	"shortlink-platform/internal/store"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubSource 按给定序列返回短码，序列耗尽后重复最后一个。
// 用于构造可控的冲突与耗尽场景。
type stubSource struct {
	codes []string
	next  int
}

func (s *stubSource) Code(length int) string {
	code := s.codes[s.next]
	if s.next < len(s.codes)-1 {
		s.next++
	}
	return code
}

func setupService(t *testing.T, codes shortcode.Source) (*LinkService, store.LinkStore) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "无法连接到内存数据库")
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ShortenedLink{}, &model.ClickEvent{}))

	linkStore := store.NewGormLinkStore(db)
	return NewLinkService(linkStore, codes, 0, 0, zap.NewNop().Sugar()), linkStore
}

// TestCreateLinkTrimsAndStores 创建时去除首尾空白并落库
func TestCreateLinkTrimsAndStores(t *testing.T) {
	svc, _ := setupService(t, shortcode.NewGeneratorWithSeed(1))

	link, err := svc.CreateLink("  https://example.com/page  ", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", link.OriginalURL)
	assert.Len(t, link.ShortCode, shortcode.DefaultLength)
	assert.Equal(t, uint(1), link.UserID)
}

func TestCreateLinkValidation(t *testing.T) {
	svc, _ := setupService(t, shortcode.NewGeneratorWithSeed(1))

	cases := []struct {
		name string
		url  string
	}{
		{"空链接", ""},
		{"只有空白", "   "},
		{"缺少协议", "example.com/page"},
		{"缺少主机名", "https://"},
		{"不是链接", "not a url at all"},
		{"超过长度上限", "https://example.com/" + strings.Repeat("x", MaxURLLength)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateLink(tc.url, 1)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

// TestCreateLinkRetriesOnCollision 短码冲突时换码重试，冲突不向上层暴露
func TestCreateLinkRetriesOnCollision(t *testing.T) {
	svc, linkStore := setupService(t, &stubSource{codes: []string{"AAAAAA", "BBBBBB"}})

	// 预先占用第一个候选短码
	_, err := linkStore.InsertUnique("https://taken.example.com", "AAAAAA", 2)
	require.NoError(t, err)

	link, err := svc.CreateLink("https://example.com", 1)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", link.ShortCode)
}

// TestCreateLinkExhausted 连续 5 次冲突后放弃并返回耗尽错误
func TestCreateLinkExhausted(t *testing.T) {
	svc, linkStore := setupService(t, &stubSource{codes: []string{"AAAAAA"}})

	_, err := linkStore.InsertUnique("https://taken.example.com", "AAAAAA", 2)
	require.NoError(t, err)

	_, err = svc.CreateLink("https://example.com", 1)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)

	// 失败的创建不应留下任何记录
	links, err := linkStore.ListByOwner(1)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestResolve(t *testing.T) {
	svc, _ := setupService(t, shortcode.NewGeneratorWithSeed(1))

	created, err := svc.CreateLink("https://example.com/page", 1)
	require.NoError(t, err)

	link, err := svc.Resolve(created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", link.OriginalURL)

	_, err = svc.Resolve("nonexistent")
	assert.ErrorIs(t, err, store.ErrLinkNotFound)
}

// TestSequentialCreatesDistinctAndNewestFirst 两次创建短码不同，统计里新的在前
func TestSequentialCreatesDistinctAndNewestFirst(t *testing.T) {
	svc, _ := setupService(t, shortcode.NewGeneratorWithSeed(1))

	first, err := svc.CreateLink("https://example.com/1", 1)
	require.NoError(t, err)
	second, err := svc.CreateLink("https://example.com/2", 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ShortCode, second.ShortCode)

	stats, err := svc.OwnerStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, second.ShortCode, stats[0].Link.ShortCode)
	assert.Equal(t, first.ShortCode, stats[1].Link.ShortCode)
}

// TestOwnerStats 统计只含自己的链接，点击数与明细一致
func TestOwnerStats(t *testing.T) {
	svc, _ := setupService(t, shortcode.NewGeneratorWithSeed(1))

	mine, err := svc.CreateLink("https://example.com/mine", 1)
	require.NoError(t, err)
	theirs, err := svc.CreateLink("https://example.com/theirs", 2)
	require.NoError(t, err)

	require.NoError(t, svc.RecordClick(mine.ID, "203.0.113.5", "curl/8.0"))
	require.NoError(t, svc.RecordClick(mine.ID, "203.0.113.6", ""))
	require.NoError(t, svc.RecordClick(theirs.ID, "198.51.100.7", ""))

	stats, err := svc.OwnerStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, mine.ShortCode, stats[0].Link.ShortCode)
	assert.Equal(t, 2, stats[0].ClickCount)
	assert.Len(t, stats[0].Clicks, 2)

	for _, s := range stats {
		assert.NotEqual(t, theirs.ShortCode, s.Link.ShortCode)
	}
}
