package models

import "time"

// ContentItem is a published piece of learning content eligible for daily selection.
type ContentItem struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Kind      string    `gorm:"type:varchar(32);not null;index:idx_content_kind_published,priority:1" json:"kind"`
	Title     string    `gorm:"not null" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary,omitempty"`
	Published bool      `gorm:"not null;default:false;index:idx_content_kind_published,priority:2" json:"published"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
