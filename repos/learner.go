package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reward-engine/logger"
	"reward-engine/models"
)

type LearnerRepo interface {
	// Upsert inserts or refreshes the learner keyed by ExternalUserID.
	Upsert(ctx context.Context, l *models.Learner) error
	Get(ctx context.Context, externalUserID string) (*models.Learner, error)
	// LastUpdated is the newest UpdatedAt among mirrored learners, zero if none.
	LastUpdated(ctx context.Context) (time.Time, error)
}

type learnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerRepo(db *gorm.DB, baseLog *logger.Logger) LearnerRepo {
	return &learnerRepo{db: db, log: logger.OrNop(baseLog).With("repo", "LearnerRepo")}
}

func (r *learnerRepo) Upsert(ctx context.Context, l *models.Learner) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "roles", "referred_by_code", "last_synced_at", "updated_at",
			}),
		}).
		Create(l).Error
}

func (r *learnerRepo) Get(ctx context.Context, externalUserID string) (*models.Learner, error) {
	var l models.Learner
	if err := r.db.WithContext(ctx).Where("external_user_id = ?", externalUserID).First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *learnerRepo) LastUpdated(ctx context.Context) (time.Time, error) {
	var l models.Learner
	err := r.db.WithContext(ctx).Order("updated_at DESC").Limit(1).Find(&l).Error
	if err != nil {
		return time.Time{}, err
	}
	return l.UpdatedAt, nil
}
