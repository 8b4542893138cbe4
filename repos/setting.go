package repos

import (
	"context"

	"gorm.io/gorm"

	"reward-engine/logger"
	"reward-engine/models"
)

type SettingsRepo interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	// Save writes s if the stored version still equals expectedVersion (0 = not yet stored)
	// and sets s.Version to the new version. A stale expectation yields ErrVersionConflict.
	Save(ctx context.Context, s *models.Setting, expectedVersion int64) error
}

type settingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return &settingsRepo{db: db, log: logger.OrNop(baseLog).With("repo", "SettingsRepo")}
}

func (r *settingsRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	if err := r.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *settingsRepo) Save(ctx context.Context, s *models.Setting, expectedVersion int64) error {
	if expectedVersion == 0 {
		s.Version = 1
		if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
			if IsUniqueViolation(err) {
				return ErrVersionConflict
			}
			return err
		}
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Setting{}).
		Where(map[string]interface{}{"key": s.Key, "version": expectedVersion}).
		Updates(map[string]interface{}{
			"schema_version": s.SchemaVersion,
			"value":          s.Value,
			"updated_by":     s.UpdatedBy,
			"version":        expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	return nil
}
