// Package repos holds the store contracts of the engine and their gorm implementations.
package repos

import (
	"gorm.io/gorm"

	"reward-engine/logger"
)

// Store bundles every contract the services depend on.
type Store struct {
	Ledger    LedgerRepo
	Badges    BadgeRepo
	Referrals ReferralRepo
	Settings  SettingsRepo
	Content   ContentRepo
	Learners  LearnerRepo
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{
		Ledger:    NewLedgerRepo(db, baseLog),
		Badges:    NewBadgeRepo(db, baseLog),
		Referrals: NewReferralRepo(db, baseLog),
		Settings:  NewSettingsRepo(db, baseLog),
		Content:   NewContentRepo(db, baseLog),
		Learners:  NewLearnerRepo(db, baseLog),
	}
}
