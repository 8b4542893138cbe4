package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SettingRankingExclusion = "ranking_exclusion"

	// RankingExclusionSchema is bumped whenever the stored value layout changes.
	RankingExclusionSchema = 1
)

// Setting is a versioned, schema-tagged configuration record.
// Version increments on every write and backs optimistic concurrency.
type Setting struct {
	Key           string         `gorm:"primaryKey;type:varchar(64)" json:"key"`
	SchemaVersion int            `gorm:"not null;default:1" json:"schema_version"`
	Version       int64          `gorm:"not null;default:0" json:"version"`
	Value         datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedBy     string         `json:"updated_by,omitempty"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// RankingExclusion is the typed value of the ranking_exclusion setting.
type RankingExclusion struct {
	UserIDs []string `json:"user_ids"`
}

func (r RankingExclusion) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(r.UserIDs))
	for _, id := range r.UserIDs {
		set[id] = struct{}{}
	}
	return set
}
