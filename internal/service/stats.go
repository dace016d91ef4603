package service

import (
	"shortlink-platform/internal/model"
)

// LinkStats 单条链接的统计信息
type LinkStats struct {
	Link       model.ShortenedLink `json:"link"`
	ClickCount int                 `json:"click_count"`
	Clicks     []model.ClickEvent  `json:"clicks"`
}

// OwnerStats 返回指定用户全部链接的统计信息，最新创建的链接在前，
// 每条链接的点击记录最新的在前。只读操作，且只返回该用户自己的数据。
func (s *LinkService) OwnerStats(ownerID uint) ([]LinkStats, error) {
	links, err := s.store.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	clicksByLink, err := s.store.ListClicksByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	stats := make([]LinkStats, 0, len(links))
	for _, link := range links {
		clicks := clicksByLink[link.ID]
		stats = append(stats, LinkStats{
			Link:       link,
			ClickCount: len(clicks),
			Clicks:     clicks,
		})
	}
	return stats, nil
}
