package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeMetric names the cumulative per-user number a badge threshold is checked against.
// Every metric is monotonic non-decreasing over the append-only ledger.
type BadgeMetric string

const (
	MetricTotalPoints        BadgeMetric = "total_points"
	MetricLongestStreak      BadgeMetric = "longest_streak"
	MetricCompletedReferrals BadgeMetric = "completed_referrals"
)

func (m BadgeMetric) Valid() bool {
	switch m {
	case MetricTotalPoints, MetricLongestStreak, MetricCompletedReferrals:
		return true
	}
	return false
}

// Badge: static reference data, read-only to the engine.
type Badge struct {
	ID                string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code              string      `gorm:"uniqueIndex;not null" json:"code"` // e.g., "POINTS_100", "STREAK_7"
	Name              string      `gorm:"not null" json:"name"`
	Description       string      `json:"description"`
	Category          string      `gorm:"type:varchar(32);not null;default:'points'" json:"category"`
	IconURL           string      `gorm:"type:text" json:"icon_url,omitempty"`
	RequirementMetric BadgeMetric `gorm:"type:varchar(32);not null;default:'total_points'" json:"requirement_metric"`
	RequirementValue  int64       `gorm:"not null;index" json:"requirement_value"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance, never revoked.
type UserBadge struct {
	ID       string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string    `gorm:"not null;uniqueIndex:idx_user_badge,priority:1" json:"user_id"`
	BadgeID  string    `gorm:"not null;uniqueIndex:idx_user_badge,priority:2" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
}

// BadgeID derives a stable id from a badge code so seeding is repeatable.
func BadgeID(code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("badge:"+code)).String()
}

func seedBadge(code, name, description, category string, metric BadgeMetric, value int64) Badge {
	return Badge{
		ID:                BadgeID(code),
		Code:              code,
		Name:              name,
		Description:       description,
		Category:          category,
		RequirementMetric: metric,
		RequirementValue:  value,
	}
}

// DefaultBadges is the catalogue seeded by `migrate`.
var DefaultBadges = []Badge{
	seedBadge("POINTS_10", "First Steps", "Earned your first 10 points", "points", MetricTotalPoints, 10),
	seedBadge("POINTS_100", "Keen Learner", "Earned 100 points", "points", MetricTotalPoints, 100),
	seedBadge("POINTS_500", "Scholar", "Earned 500 points", "points", MetricTotalPoints, 500),
	seedBadge("POINTS_1000", "Master", "Earned 1,000 points", "points", MetricTotalPoints, 1000),
	seedBadge("POINTS_5000", "Legend", "Earned 5,000 points", "points", MetricTotalPoints, 5000),
	seedBadge("STREAK_7", "One Week Strong", "Logged in 7 days in a row", "streak", MetricLongestStreak, 7),
	seedBadge("STREAK_30", "Habit Formed", "Logged in 30 days in a row", "streak", MetricLongestStreak, 30),
	seedBadge("REFER_1", "Friendly Face", "A friend you invited got started", "referral", MetricCompletedReferrals, 1),
	seedBadge("REFER_5", "Recruiter", "5 friends you invited got started", "referral", MetricCompletedReferrals, 5),
}
