package services

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"reward-engine/apierr"
	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

type CreditRequest struct {
	UserID     string
	Source     models.RewardSource
	Points     int64
	OccurredOn civil.Date // zero value means today in the reference timezone
	DedupeKey  string     // required for non-daily sources; daily sources use the day
	Metadata   map[string]interface{}
}

type CreditResult struct {
	Credited        bool
	AlreadyCredited bool
	Event           *models.RewardEvent
}

// Ledger credits reward events exactly once per (user, source, dedupe key).
type Ledger struct {
	repo repos.LedgerRepo
	cal  *calendar.Calendar
	log  *logger.Logger
}

func NewLedger(repo repos.LedgerRepo, cal *calendar.Calendar, log *logger.Logger) *Ledger {
	return &Ledger{repo: repo, cal: cal, log: logger.OrNop(log).With("service", "Ledger")}
}

// Credit inserts one event. Losing the race to an identical credit is reported
// as AlreadyCredited, not as an error.
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	if req.UserID == "" {
		return CreditResult{}, apierr.Field("user_id", "is required")
	}
	if !req.Source.Valid() {
		return CreditResult{}, apierr.Field("source", "is not a recognized reward source")
	}
	if req.Points < 0 {
		return CreditResult{}, apierr.Field("points", "must not be negative")
	}

	day := req.OccurredOn
	if day.IsZero() {
		day = l.cal.Today()
	}
	dedupe := req.DedupeKey
	if req.Source.Daily() {
		dedupe = day.String()
	}
	if dedupe == "" {
		return CreditResult{}, apierr.Field("dedupe_key", "is required for "+string(req.Source))
	}

	ev := &models.RewardEvent{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Source:     req.Source,
		DedupeKey:  dedupe,
		Points:     req.Points,
		OccurredOn: calendar.ToTime(day),
	}
	if len(req.Metadata) > 0 {
		raw, err := sonic.Marshal(req.Metadata)
		if err != nil {
			return CreditResult{}, apierr.Field("metadata", "must be a JSON object")
		}
		ev.Metadata = datatypes.JSON(raw)
	}

	if err := l.repo.Insert(ctx, ev); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			l.log.Debug("Already credited", "user_id", req.UserID, "source", req.Source, "dedupe_key", dedupe)
			return CreditResult{AlreadyCredited: true}, nil
		}
		l.log.Error("Credit failed", "user_id", req.UserID, "source", req.Source, "error", err)
		return CreditResult{}, storeFailure(err)
	}

	l.log.Info("Credited", "user_id", req.UserID, "source", req.Source, "points", req.Points, "day", day.String())
	return CreditResult{Credited: true, Event: ev}, nil
}

func (l *Ledger) TotalPoints(ctx context.Context, userID string) (int64, error) {
	total, err := l.repo.SumPoints(ctx, userID)
	if err != nil {
		return 0, storeFailure(err)
	}
	return total, nil
}
