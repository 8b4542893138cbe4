package services

import (
	"context"

	"reward-engine/apierr"
	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

type EngineConfig struct {
	Points          map[string]int64
	MilestoneSource models.RewardSource
	DailyCount      int
}

// Engine composes the reward components. Follow-up work (streak, referral
// milestone, badges) runs only in the request that won the ledger insert.
type Engine struct {
	Ledger    *Ledger
	Streaks   *StreakTracker
	Badges    *BadgeEvaluator
	Referrals *ReferralProgram
	Ranking   *RankingAggregator
	Exclusion *ExclusionSettings
	Daily     *DailyContent

	points    map[string]int64
	milestone models.RewardSource
	cal       *calendar.Calendar
	log       *logger.Logger
}

func NewEngine(store *repos.Store, cal *calendar.Calendar, cfg EngineConfig, log *logger.Logger) *Engine {
	log = logger.OrNop(log)
	exclusion := NewExclusionSettings(store.Settings, log)
	return &Engine{
		Ledger:    NewLedger(store.Ledger, cal, log),
		Streaks:   NewStreakTracker(store.Ledger, cal, log),
		Badges:    NewBadgeEvaluator(store.Badges, store.Ledger, store.Referrals, cal, log),
		Referrals: NewReferralProgram(store.Referrals, store.Ledger, store.Learners, exclusion, cal, log),
		Ranking:   NewRankingAggregator(store.Ledger, exclusion, cal, log),
		Exclusion: exclusion,
		Daily:     NewDailyContent(store.Content, cal, cfg.DailyCount, log),
		points:    cfg.Points,
		milestone: cfg.MilestoneSource,
		cal:       cal,
		log:       log.With("service", "Engine"),
	}
}

func (e *Engine) PointsFor(source models.RewardSource) int64 {
	return e.points[string(source)]
}

type BadgeSummary struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type CreditOutcome struct {
	Credited        bool           `json:"credited"`
	AlreadyCredited bool           `json:"alreadyCredited"`
	Points          int64          `json:"points"`
	NewBadges       []BadgeSummary `json:"newBadges"`
	Streak          *StreakView    `json:"streak,omitempty"`
	NewStreakRecord bool           `json:"newStreakRecord,omitempty"`
}

// CreditAction credits a client-reported qualifying action for today.
func (e *Engine) CreditAction(ctx context.Context, userID string, source models.RewardSource, metadata map[string]interface{}) (CreditOutcome, error) {
	if userID == "" {
		return CreditOutcome{}, apierr.AuthRequired("")
	}
	if !source.ClientCreditable() {
		return CreditOutcome{}, apierr.Field("source", "is not a creditable action")
	}

	today := e.cal.Today()
	res, err := e.Ledger.Credit(ctx, CreditRequest{
		UserID:     userID,
		Source:     source,
		Points:     e.PointsFor(source),
		OccurredOn: today,
		Metadata:   metadata,
	})
	if err != nil {
		return CreditOutcome{}, err
	}
	out := CreditOutcome{NewBadges: []BadgeSummary{}}
	if !res.Credited {
		out.AlreadyCredited = true
		return out, nil
	}
	out.Credited = true
	out.Points = res.Event.Points

	if source == models.SourceLoginBonus {
		state, record, err := e.Streaks.Advance(ctx, userID, today)
		if err != nil {
			return CreditOutcome{}, err
		}
		view := state.View(today)
		out.Streak = &view
		out.NewStreakRecord = record
	}

	if e.milestone != "" && source == e.milestone {
		if _, err := e.CompleteReferral(ctx, userID); err != nil {
			return CreditOutcome{}, err
		}
	}

	awarded, err := e.Badges.Evaluate(ctx, userID)
	if err != nil {
		return CreditOutcome{}, err
	}
	for _, b := range awarded {
		out.NewBadges = append(out.NewBadges, BadgeSummary{ID: b.ID, Code: b.Code, Name: b.Name, Category: b.Category})
	}
	return out, nil
}

// CompleteReferral completes the referral of referredID, if pending, and rewards the referrer.
// It reports whether this call performed the completion.
func (e *Engine) CompleteReferral(ctx context.Context, referredID string) (bool, error) {
	ref, won, err := e.Referrals.Complete(ctx, referredID)
	if err != nil || !won {
		return false, err
	}

	if _, err := e.Ledger.Credit(ctx, CreditRequest{
		UserID:    ref.ReferrerID,
		Source:    models.SourceReferralBonus,
		Points:    e.PointsFor(models.SourceReferralBonus),
		DedupeKey: "referral:" + ref.ID,
		Metadata:  map[string]interface{}{"referred_id": ref.ReferredID},
	}); err != nil {
		return true, err
	}
	if _, err := e.Badges.Evaluate(ctx, ref.ReferrerID); err != nil {
		return true, err
	}
	return true, nil
}
