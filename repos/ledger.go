package repos

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"gorm.io/gorm"

	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
)

// LedgerRepo is the append-only store of reward events. There is no update or delete.
type LedgerRepo interface {
	// Insert fails with ErrDuplicate when (user, source, dedupe key) already exists.
	Insert(ctx context.Context, ev *models.RewardEvent) error
	SumPoints(ctx context.Context, userID string) (int64, error)
	// HasEvents reports whether userID has ever been credited.
	HasEvents(ctx context.Context, userID string) (bool, error)
	// Days returns the distinct days on which userID was credited for source, ascending.
	Days(ctx context.Context, userID string, source models.RewardSource) ([]civil.Date, error)
	// Totals aggregates points per user over the inclusive window (nil bounds are open),
	// omitting excluded users, ordered by total desc then user id asc.
	Totals(ctx context.Context, from, to *civil.Date, exclude []string) ([]models.PointTotal, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return &ledgerRepo{db: db, log: logger.OrNop(baseLog).With("repo", "LedgerRepo")}
}

func (r *ledgerRepo) Insert(ctx context.Context, ev *models.RewardEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *ledgerRepo) SumPoints(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ledgerRepo) Days(ctx context.Context, userID string, source models.RewardSource) ([]civil.Date, error) {
	var rows []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Where("user_id = ? AND source = ?", userID, source).
		Order("occurred_on ASC").
		Pluck("occurred_on", &rows).Error
	if err != nil {
		return nil, err
	}
	days := make([]civil.Date, 0, len(rows))
	for _, t := range rows {
		d := calendar.FromTime(t)
		if n := len(days); n > 0 && days[n-1] == d {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

func (r *ledgerRepo) HasEvents(ctx context.Context, userID string) (bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *ledgerRepo) Totals(ctx context.Context, from, to *civil.Date, exclude []string) ([]models.PointTotal, error) {
	q := r.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Select("user_id, COALESCE(SUM(points), 0) AS total_points")
	if from != nil {
		q = q.Where("occurred_on >= ?", calendar.ToTime(*from))
	}
	if to != nil {
		q = q.Where("occurred_on <= ?", calendar.ToTime(*to))
	}
	if len(exclude) > 0 {
		q = q.Where("user_id NOT IN ?", exclude)
	}

	var rows []models.PointTotal
	if err := q.Group("user_id").Order("total_points DESC, user_id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
