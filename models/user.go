package models

import (
	"time"

	"gorm.io/gorm"
)

// Learner is a local snapshot of the profile data the engine needs.
// Populated by the profile sync worker; the engine never writes profile fields itself.
type Learner struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalUserID string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // the identity used in reward events
	Username       string     `gorm:"index" json:"username"`
	DisplayName    *string    `json:"display_name,omitempty"`
	Roles          string     `gorm:"type:varchar(128)" json:"roles,omitempty"` // comma-separated
	ReferredByCode *string    `gorm:"type:varchar(16)" json:"referred_by_code,omitempty"`
	LastSyncedAt   *time.Time `gorm:"index" json:"last_synced_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
