package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reward-engine/logger"
	"reward-engine/models"
)

type ContentRepo interface {
	// Published lists published items of kind ("" = every kind) ordered by id.
	Published(ctx context.Context, kind string) ([]models.ContentItem, error)
	Kinds(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, items []models.ContentItem) error
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: logger.OrNop(baseLog).With("repo", "ContentRepo")}
}

func (r *contentRepo) Published(ctx context.Context, kind string) ([]models.ContentItem, error) {
	q := r.db.WithContext(ctx).Where("published = ?", true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var items []models.ContentItem
	if err := q.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *contentRepo) Kinds(ctx context.Context) ([]string, error) {
	var kinds []string
	err := r.db.WithContext(ctx).
		Model(&models.ContentItem{}).
		Where("published = ?", true).
		Distinct().
		Order("kind ASC").
		Pluck("kind", &kinds).Error
	if err != nil {
		return nil, err
	}
	return kinds, nil
}

func (r *contentRepo) Upsert(ctx context.Context, items []models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "title", "summary", "published"}),
		}).
		Create(&items).Error
}
