package models

import (
	"time"

	"gorm.io/datatypes"
)

// RewardSource tags the qualifying action that produced a RewardEvent.
type RewardSource string

const (
	SourceChapterClear   RewardSource = "chapter_clear"
	SourceListeningDaily RewardSource = "listening_daily"
	SourceLoginBonus     RewardSource = "login_bonus"
	SourceTemporaryQuest RewardSource = "temporary_quest"
	SourceReferralBonus  RewardSource = "referral_bonus"
)

var AllSources = []RewardSource{
	SourceChapterClear,
	SourceListeningDaily,
	SourceLoginBonus,
	SourceTemporaryQuest,
	SourceReferralBonus,
}

func (s RewardSource) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// Daily sources are credited at most once per user per calendar day.
func (s RewardSource) Daily() bool {
	return s.Valid() && s != SourceReferralBonus
}

// ClientCreditable sources may be requested through POST /rewards/credit.
// referral_bonus is only ever credited by the engine itself.
func (s RewardSource) ClientCreditable() bool {
	return s.Daily()
}

// RewardEvent is one append-only ledger row. The unique index makes a second
// credit for the same (user, source, dedupe key) fail at the store.
type RewardEvent struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string         `gorm:"not null;uniqueIndex:idx_reward_once,priority:1;index:idx_reward_user_day,priority:1" json:"user_id"`
	Source     RewardSource   `gorm:"type:varchar(32);not null;uniqueIndex:idx_reward_once,priority:2" json:"source"`
	DedupeKey  string         `gorm:"type:varchar(80);not null;uniqueIndex:idx_reward_once,priority:3" json:"-"`
	Points     int64          `gorm:"not null;check:chk_reward_points,points >= 0" json:"points"`
	OccurredOn time.Time      `gorm:"type:date;not null;index;index:idx_reward_user_day,priority:2" json:"occurred_on"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// PointTotal is one row of a per-user points aggregation.
type PointTotal struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
}
