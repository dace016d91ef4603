package model

import (
	"time"
)

// ClickEvent 一次重定向访问的记录，只追加不修改
type ClickEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ShortLinkID uint      `gorm:"not null;index" json:"short_link_id"`
	ClickedAt   time.Time `gorm:"autoCreateTime" json:"clicked_at"`
	SourceIP    string    `gorm:"size:45;not null" json:"source_ip"`
	UserAgent   string    `gorm:"type:text" json:"user_agent"`
}

func (ClickEvent) TableName() string {
	return "click_events"
}
