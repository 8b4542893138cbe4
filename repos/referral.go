package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"reward-engine/logger"
	"reward-engine/models"
)

type ReferralRepo interface {
	CodeFor(ctx context.Context, userID string) (*models.ReferralCode, error)
	// CreateCode fails with ErrDuplicate if the user already has a code or the code is taken.
	CreateCode(ctx context.Context, rc *models.ReferralCode) error
	// FindCode looks up an already-normalized (uppercase) code.
	FindCode(ctx context.Context, code string) (*models.ReferralCode, error)

	// CreateReferral fails with ErrDuplicate if the referred user is already attributed.
	CreateReferral(ctx context.Context, ref *models.Referral) error
	ReferralFor(ctx context.Context, referredID string) (*models.Referral, error)
	// MarkCompleted moves a pending referral to completed. The bool is true only for
	// the call that performed the transition.
	MarkCompleted(ctx context.Context, referredID string, at time.Time) (*models.Referral, bool, error)
	ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error)
	CountCompleted(ctx context.Context, referrerID string) (int64, error)
}

type referralRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferralRepo(db *gorm.DB, baseLog *logger.Logger) ReferralRepo {
	return &referralRepo{db: db, log: logger.OrNop(baseLog).With("repo", "ReferralRepo")}
}

func (r *referralRepo) CodeFor(ctx context.Context, userID string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rc).Error; err != nil {
		return nil, notFound(err)
	}
	return &rc, nil
}

func (r *referralRepo) CreateCode(ctx context.Context, rc *models.ReferralCode) error {
	if err := r.db.WithContext(ctx).Create(rc).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *referralRepo) FindCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&rc).Error; err != nil {
		return nil, notFound(err)
	}
	return &rc, nil
}

func (r *referralRepo) CreateReferral(ctx context.Context, ref *models.Referral) error {
	if err := r.db.WithContext(ctx).Create(ref).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *referralRepo) ReferralFor(ctx context.Context, referredID string) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&ref).Error; err != nil {
		return nil, notFound(err)
	}
	return &ref, nil
}

func (r *referralRepo) MarkCompleted(ctx context.Context, referredID string, at time.Time) (*models.Referral, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("referred_id = ? AND status = ?", referredID, models.ReferralStatusPending).
		Updates(map[string]interface{}{
			"status":       models.ReferralStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	ref, err := r.ReferralFor(ctx, referredID)
	if err != nil {
		return nil, false, err
	}
	return ref, res.RowsAffected > 0, nil
}

func (r *referralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	if err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC, id ASC").
		Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *referralRepo) CountCompleted(ctx context.Context, referrerID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("referrer_id = ? AND status = ?", referrerID, models.ReferralStatusCompleted).
		Count(&n).Error
	return n, err
}
