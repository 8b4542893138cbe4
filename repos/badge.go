package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reward-engine/logger"
	"reward-engine/models"
)

type BadgeRepo interface {
	// ListBadges returns the catalogue ordered by requirement value, then code.
	ListBadges(ctx context.Context) ([]models.Badge, error)
	ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	// Award inserts ub unless the user already holds the badge; it reports whether a row was written.
	Award(ctx context.Context, ub *models.UserBadge) (bool, error)
	UpsertBadges(ctx context.Context, badges []models.Badge) error // keyed by id, see models.BadgeID
}

type badgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBadgeRepo(db *gorm.DB, baseLog *logger.Logger) BadgeRepo {
	return &badgeRepo{db: db, log: logger.OrNop(baseLog).With("repo", "BadgeRepo")}
}

func (r *badgeRepo) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).
		Order("requirement_value ASC, code ASC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *badgeRepo) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var owned []models.UserBadge
	if userID == "" {
		return owned, nil
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at ASC").
		Find(&owned).Error; err != nil {
		return nil, err
	}
	return owned, nil
}

func (r *badgeRepo) Award(ctx context.Context, ub *models.UserBadge) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Create(ub)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeRepo) UpsertBadges(ctx context.Context, badges []models.Badge) error {
	if len(badges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "category", "icon_url", "requirement_metric", "requirement_value",
			}),
		}).
		Create(&badges).Error
}
