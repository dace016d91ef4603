package store

import (
	"errors"
	"fmt"
	"shortlink-platform/internal/model"

	"gorm.io/gorm"
)

var (
	// ErrCodeTaken 表示短码已被占用（唯一索引冲突），调用方应换码重试
	ErrCodeTaken = errors.New("短码已被占用")
	// ErrLinkNotFound 表示短码不存在
	ErrLinkNotFound = errors.New("短链接不存在")
)

// LinkStore 短链接存储接口。归属过滤只在这一层做，
// 上层不允许绕过 ownerID 直接查询别人的数据。
type LinkStore interface {
	// InsertUnique 插入一条新记录，短码冲突时返回 ErrCodeTaken。
	// 冲突检测依赖数据库唯一索引，写入即判定，没有先查后写的竞态窗口。
	InsertUnique(originalURL, shortCode string, ownerID uint) (*model.ShortenedLink, error)
	// FindByCode 按短码查找，未命中返回 ErrLinkNotFound
	FindByCode(shortCode string) (*model.ShortenedLink, error)
	// ListByOwner 返回指定用户的全部链接，最新的在前
	ListByOwner(ownerID uint) ([]model.ShortenedLink, error)
	// AppendClick 为指定链接追加一条点击记录，点击没有唯一性约束
	AppendClick(linkID uint, sourceIP, userAgent string) (*model.ClickEvent, error)
	// ListClicksByOwner 返回指定用户所有链接的点击记录，按链接 ID 分组，每组最新的在前
	ListClicksByOwner(ownerID uint) (map[uint][]model.ClickEvent, error)
}

// GormLinkStore 基于 GORM 的 LinkStore 实现。
// 依赖 gorm.Config{TranslateError: true} 把各数据库的重复键错误
// 统一翻译成 gorm.ErrDuplicatedKey。
type GormLinkStore struct {
	db *gorm.DB
}

// NewGormLinkStore 创建存储实例
func NewGormLinkStore(db *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: db}
}

func (s *GormLinkStore) InsertUnique(originalURL, shortCode string, ownerID uint) (*model.ShortenedLink, error) {
	link := model.ShortenedLink{
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		UserID:      ownerID,
	}
	if err := s.db.Create(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("写入短链接失败: %w", err)
	}
	return &link, nil
}

func (s *GormLinkStore) FindByCode(shortCode string) (*model.ShortenedLink, error) {
	var link model.ShortenedLink
	if err := s.db.Where("short_code = ?", shortCode).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("查询短链接失败: %w", err)
	}
	return &link, nil
}

func (s *GormLinkStore) ListByOwner(ownerID uint) ([]model.ShortenedLink, error) {
	var links []model.ShortenedLink
	// 同一时刻创建的记录用 id 作为次序键，保证排序稳定
	err := s.db.Where("user_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户链接失败: %w", err)
	}
	return links, nil
}

func (s *GormLinkStore) AppendClick(linkID uint, sourceIP, userAgent string) (*model.ClickEvent, error) {
	click := model.ClickEvent{
		ShortLinkID: linkID,
		SourceIP:    sourceIP,
		UserAgent:   userAgent,
	}
	if err := s.db.Create(&click).Error; err != nil {
		return nil, fmt.Errorf("写入点击记录失败: %w", err)
	}
	return &click, nil
}

func (s *GormLinkStore) ListClicksByOwner(ownerID uint) (map[uint][]model.ClickEvent, error) {
	var clicks []model.ClickEvent
	err := s.db.
		Joins("JOIN shortened_links ON shortened_links.id = click_events.short_link_id").
		Where("shortened_links.user_id = ?", ownerID).
		Order("click_events.clicked_at DESC, click_events.id DESC").
		Find(&clicks).Error
	if err != nil {
		return nil, fmt.Errorf("查询点击记录失败: %w", err)
	}

	grouped := make(map[uint][]model.ClickEvent, len(clicks))
	for _, c := range clicks {
		grouped[c.ShortLinkID] = append(grouped[c.ShortLinkID], c)
	}
	return grouped, nil
}
