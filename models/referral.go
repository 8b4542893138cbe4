package models

import "time"

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// Referral attributes a new learner to the learner whose code they used.
// pending -> completed is the only transition; completed is terminal.
type Referral struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ReferrerID  string         `gorm:"index;not null" json:"referrer_id"`
	ReferredID  string         `gorm:"uniqueIndex;not null" json:"referred_id"`
	CodeUsed    string         `gorm:"type:varchar(16);not null" json:"code_used"`
	Status      ReferralStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ReferralCode is the immutable shareable code of one learner, stored uppercase.
type ReferralCode struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Code      string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
