package model

import (
	"time"
)

// ShortenedLink 短链接记录，创建后不可变更
type ShortenedLink struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OriginalURL string    `gorm:"size:500;not null" json:"original_url"`
	ShortCode   string    `gorm:"size:15;uniqueIndex;not null" json:"short_code"`
	UserID      uint      `gorm:"not null;index" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (ShortenedLink) TableName() string {
	return "shortened_links"
}
