package services

import (
	"context"
	"strings"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"reward-engine/apierr"
	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

type Period string

const (
	PeriodAllTime Period = "all-time"
	PeriodWeekly  Period = "weekly"
)

// ParsePeriod accepts "all-time" (default), "all_time" and "weekly".
func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all-time", "all_time", "alltime":
		return PeriodAllTime, nil
	case "weekly", "week":
		return PeriodWeekly, nil
	}
	return "", apierr.Field("period", "must be all-time or weekly")
}

type RankEntry struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
	Rank        int    `json:"rank"`
}

// RankTotals assigns standard competition ranks (1, 1, 3) to totals already
// ordered by points desc, user id asc.
func RankTotals(totals []models.PointTotal) []RankEntry {
	entries := make([]RankEntry, 0, len(totals))
	for i, t := range totals {
		rank := i + 1
		if i > 0 && t.TotalPoints == totals[i-1].TotalPoints {
			rank = entries[i-1].Rank
		}
		entries = append(entries, RankEntry{UserID: t.UserID, TotalPoints: t.TotalPoints, Rank: rank})
	}
	return entries
}

// Standing is one learner's position on both leaderboards. Ranks are nil for excluded learners.
type Standing struct {
	TotalPoints    int64  `json:"totalPoints"`
	Rank           *int   `json:"rank"`
	NextRankPoints *int64 `json:"nextRankPoints"`
	PointsNeeded   int64  `json:"pointsNeeded"`
	WeeklyPoints   int64  `json:"weeklyPoints"`
	WeeklyRank     *int   `json:"weeklyRank"`
}

type position struct {
	points int64
	rank   int
	next   *int64
}

// locate finds userID on a ranked board. A learner absent from the board ranks
// after everyone with positive points.
func locate(entries []RankEntry, userID string) position {
	var p position
	found := false
	for _, e := range entries {
		if e.UserID == userID {
			p.points, p.rank, found = e.TotalPoints, e.Rank, true
			break
		}
	}
	if !found {
		above := 0
		for _, e := range entries {
			if e.TotalPoints > 0 {
				above++
			}
		}
		p.rank = above + 1
	}
	for _, e := range entries {
		if e.TotalPoints > p.points {
			pts := e.TotalPoints
			p.next = &pts
		}
	}
	return p
}

// RankingAggregator builds leaderboards from the ledger, dropping excluded learners before ranking.
type RankingAggregator struct {
	ledger    repos.LedgerRepo
	exclusion *ExclusionSettings
	cal       *calendar.Calendar
	log       *logger.Logger
}

func NewRankingAggregator(ledger repos.LedgerRepo, exclusion *ExclusionSettings, cal *calendar.Calendar, log *logger.Logger) *RankingAggregator {
	return &RankingAggregator{
		ledger:    ledger,
		exclusion: exclusion,
		cal:       cal,
		log:       logger.OrNop(log).With("service", "RankingAggregator"),
	}
}

func (a *RankingAggregator) Ranking(ctx context.Context, period Period) ([]RankEntry, error) {
	excluded, err := a.exclusion.Get(ctx)
	if err != nil {
		return nil, err
	}
	return a.board(ctx, period, excluded.UserIDs)
}

func (a *RankingAggregator) board(ctx context.Context, period Period, exclude []string) ([]RankEntry, error) {
	var from, to *civil.Date
	switch period {
	case PeriodAllTime:
	case PeriodWeekly:
		f, t := a.cal.WeekWindow()
		from, to = &f, &t
	default:
		return nil, apierr.Field("period", "must be all-time or weekly")
	}

	totals, err := a.ledger.Totals(ctx, from, to, exclude)
	if err != nil {
		a.log.Error("Ranking query failed", "period", period, "error", err)
		return nil, storeFailure(err)
	}
	return RankTotals(totals), nil
}

// Standing computes the caller's all-time and weekly positions concurrently.
func (a *RankingAggregator) Standing(ctx context.Context, userID string) (Standing, error) {
	excluded, err := a.exclusion.Get(ctx)
	if err != nil {
		return Standing{}, err
	}
	isExcluded := excluded.Contains(userID)

	var allTime, weekly []RankEntry
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allTime, err = a.board(gctx, PeriodAllTime, excluded.UserIDs)
		return err
	})
	g.Go(func() error {
		var err error
		weekly, err = a.board(gctx, PeriodWeekly, excluded.UserIDs)
		return err
	})
	if isExcluded {
		// Excluded learners are missing from the boards; their own totals still come from the ledger.
		g.Go(func() error {
			var err error
			total, err = a.ledger.SumPoints(gctx, userID)
			return storeFailure(err)
		})
	}
	if err := g.Wait(); err != nil {
		return Standing{}, err
	}

	if isExcluded {
		return Standing{TotalPoints: total}, nil
	}

	all := locate(allTime, userID)
	week := locate(weekly, userID)
	s := Standing{
		TotalPoints:    all.points,
		Rank:           &all.rank,
		NextRankPoints: all.next,
		WeeklyPoints:   week.points,
		WeeklyRank:     &week.rank,
	}
	if all.next != nil {
		s.PointsNeeded = *all.next - all.points
	}
	return s, nil
}
