package services

import (
	"context"

	"cloud.google.com/go/civil"

	"reward-engine/calendar"
	"reward-engine/daily"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

// DailySelection is the content every learner sees on Date.
type DailySelection struct {
	Date  string               `json:"date"`
	Seed  int64                `json:"seed"`
	Kind  string               `json:"kind,omitempty"`
	Items []models.ContentItem `json:"items"`
}

type DailyContent struct {
	repo  repos.ContentRepo
	cal   *calendar.Calendar
	count int
	log   *logger.Logger
}

func NewDailyContent(repo repos.ContentRepo, cal *calendar.Calendar, count int, log *logger.Logger) *DailyContent {
	return &DailyContent{repo: repo, cal: cal, count: count, log: logger.OrNop(log).With("service", "DailyContent")}
}

// ForDate selects from the published pool of kind ("" = all kinds). A zero date means today.
func (d *DailyContent) ForDate(ctx context.Context, date civil.Date, kind string) (DailySelection, error) {
	if date.IsZero() {
		date = d.cal.Today()
	}
	pool, err := d.repo.Published(ctx, kind)
	if err != nil {
		d.log.Error("Loading content pool failed", "kind", kind, "error", err)
		return DailySelection{}, storeFailure(err)
	}
	return DailySelection{
		Date:  date.String(),
		Seed:  calendar.Seed(date),
		Kind:  kind,
		Items: daily.Select(date, pool, d.count),
	}, nil
}

func (d *DailyContent) Kinds(ctx context.Context) ([]string, error) {
	kinds, err := d.repo.Kinds(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return kinds, nil
}
