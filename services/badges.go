package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

// BadgeProgress is one catalogue badge as seen by a learner.
type BadgeProgress struct {
	ID                string             `json:"id"`
	Code              string             `json:"code"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Category          string             `json:"category"`
	IconURL           string             `json:"icon_url,omitempty"`
	RequirementMetric models.BadgeMetric `json:"requirement_metric"`
	RequirementValue  int64              `json:"requirement_value"`
	Earned            bool               `json:"earned"`
	EarnedAt          *time.Time         `json:"earned_at"`
	Progress          int                `json:"progress"`
}

// ProgressPercent is floor(value / requirement * 100), capped at 100.
func ProgressPercent(value, requirement int64) int {
	if requirement <= 0 || value >= requirement {
		return 100
	}
	if value <= 0 {
		return 0
	}
	return int(value * 100 / requirement)
}

// BadgeEvaluator unlocks threshold badges. Awards are never revoked.
type BadgeEvaluator struct {
	badges    repos.BadgeRepo
	ledger    repos.LedgerRepo
	referrals repos.ReferralRepo
	cal       *calendar.Calendar
	log       *logger.Logger
}

func NewBadgeEvaluator(badges repos.BadgeRepo, ledger repos.LedgerRepo, referrals repos.ReferralRepo, cal *calendar.Calendar, log *logger.Logger) *BadgeEvaluator {
	return &BadgeEvaluator{
		badges:    badges,
		ledger:    ledger,
		referrals: referrals,
		cal:       cal,
		log:       logger.OrNop(log).With("service", "BadgeEvaluator"),
	}
}

// metrics loads only the metrics the given badges need.
func (e *BadgeEvaluator) metrics(ctx context.Context, userID string, badges []models.Badge) (map[models.BadgeMetric]int64, error) {
	values := map[models.BadgeMetric]int64{}
	for _, b := range badges {
		metric := metricOf(b)
		if _, done := values[metric]; done {
			continue
		}
		var v int64
		switch metric {
		case models.MetricTotalPoints:
			total, err := e.ledger.SumPoints(ctx, userID)
			if err != nil {
				return nil, storeFailure(err)
			}
			v = total
		case models.MetricLongestStreak:
			days, err := e.ledger.Days(ctx, userID, models.SourceLoginBonus)
			if err != nil {
				return nil, storeFailure(err)
			}
			v = int64(DeriveStreak(days).Longest)
		case models.MetricCompletedReferrals:
			n, err := e.referrals.CountCompleted(ctx, userID)
			if err != nil {
				return nil, storeFailure(err)
			}
			v = n
		default:
			e.log.Warn("Unknown badge metric", "badge", b.Code, "metric", metric)
			continue
		}
		values[metric] = v
	}
	return values, nil
}

func metricOf(b models.Badge) models.BadgeMetric {
	if b.RequirementMetric == "" {
		return models.MetricTotalPoints
	}
	return b.RequirementMetric
}

// Evaluate awards every badge whose threshold the learner has reached and
// returns the ones newly awarded by this call, in catalogue order.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, userID string) ([]models.Badge, error) {
	catalogue, err := e.badges.ListBadges(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	owned, err := e.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, storeFailure(err)
	}
	held := make(map[string]struct{}, len(owned))
	for _, ub := range owned {
		held[ub.BadgeID] = struct{}{}
	}

	var candidates []models.Badge
	for _, b := range catalogue {
		if _, ok := held[b.ID]; !ok {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return []models.Badge{}, nil
	}

	values, err := e.metrics(ctx, userID, candidates)
	if err != nil {
		return nil, err
	}

	awarded := []models.Badge{}
	now := e.cal.Now()
	for _, b := range candidates {
		v, known := values[metricOf(b)]
		if !known || v < b.RequirementValue {
			continue
		}
		won, err := e.badges.Award(ctx, &models.UserBadge{
			ID:       uuid.NewString(),
			UserID:   userID,
			BadgeID:  b.ID,
			EarnedAt: now,
		})
		if err != nil {
			e.log.Error("Award failed", "user_id", userID, "badge", b.Code, "error", err)
			return nil, storeFailure(err)
		}
		if won {
			awarded = append(awarded, b)
			e.log.Info("🎖️ Badge awarded", "user_id", userID, "badge", b.Code)
		}
	}
	return awarded, nil
}

// Progress reports every catalogue badge for the learner without writing anything.
func (e *BadgeEvaluator) Progress(ctx context.Context, userID string) ([]BadgeProgress, error) {
	catalogue, err := e.badges.ListBadges(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	owned, err := e.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, storeFailure(err)
	}
	earnedAt := make(map[string]time.Time, len(owned))
	for _, ub := range owned {
		earnedAt[ub.BadgeID] = ub.EarnedAt
	}
	values, err := e.metrics(ctx, userID, catalogue)
	if err != nil {
		return nil, err
	}

	out := make([]BadgeProgress, 0, len(catalogue))
	for _, b := range catalogue {
		p := BadgeProgress{
			ID:                b.ID,
			Code:              b.Code,
			Name:              b.Name,
			Description:       b.Description,
			Category:          b.Category,
			IconURL:           b.IconURL,
			RequirementMetric: metricOf(b),
			RequirementValue:  b.RequirementValue,
			Progress:          ProgressPercent(values[metricOf(b)], b.RequirementValue),
		}
		if at, ok := earnedAt[b.ID]; ok {
			t := at
			p.Earned = true
			p.EarnedAt = &t
			p.Progress = 100
		}
		out = append(out, p)
	}
	return out, nil
}
