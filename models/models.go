package models

// All lists every table the engine owns, in migration order.
func All() []interface{} {
	return []interface{}{
		&Learner{},
		&RewardEvent{},
		&Badge{},
		&UserBadge{},
		&ReferralCode{},
		&Referral{},
		&Setting{},
		&ContentItem{},
	}
}
