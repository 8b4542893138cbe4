package services

import (
	"context"

	"cloud.google.com/go/civil"

	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

type StreakStatus string

const (
	StreakNone   StreakStatus = "no_streak"
	StreakActive StreakStatus = "active"
	StreakBroken StreakStatus = "broken"
)

// StreakState is the login streak of one learner. A zero LastDay means no login yet.
type StreakState struct {
	Current int
	Longest int
	LastDay civil.Date
}

// Next applies a login on today. isNewRecord reports that Current passed the previous Longest.
func (s StreakState) Next(today civil.Date) (next StreakState, isNewRecord bool) {
	next = s
	switch {
	case s.LastDay.IsZero():
		next.Current = 1
	case s.LastDay == today:
		return s, false
	case s.LastDay.AddDays(1) == today:
		next.Current = s.Current + 1
	default:
		next.Current = 1
	}
	next.LastDay = today
	if next.Current > s.Longest {
		next.Longest = next.Current
		isNewRecord = true
	}
	return next, isNewRecord
}

// DeriveStreak folds Next over ascending login days.
func DeriveStreak(days []civil.Date) StreakState {
	var s StreakState
	for _, d := range days {
		s, _ = s.Next(d)
	}
	return s
}

// StreakView is the read model served to clients.
type StreakView struct {
	CurrentStreak int          `json:"currentStreak"`
	LongestStreak int          `json:"longestStreak"`
	LastDay       *string      `json:"lastDay"`
	Status        StreakStatus `json:"status"`
}

// View reports s as seen on today. A streak whose last login is before yesterday reads as 0.
func (s StreakState) View(today civil.Date) StreakView {
	if s.LastDay.IsZero() {
		return StreakView{Status: StreakNone}
	}
	last := s.LastDay.String()
	v := StreakView{CurrentStreak: s.Current, LongestStreak: s.Longest, LastDay: &last, Status: StreakActive}
	if s.LastDay.Before(today.AddDays(-1)) {
		v.CurrentStreak = 0
		v.Status = StreakBroken
	}
	return v
}

// StreakTracker derives login streaks from the login_bonus days in the ledger.
type StreakTracker struct {
	ledger repos.LedgerRepo
	cal    *calendar.Calendar
	log    *logger.Logger
}

func NewStreakTracker(ledger repos.LedgerRepo, cal *calendar.Calendar, log *logger.Logger) *StreakTracker {
	return &StreakTracker{ledger: ledger, cal: cal, log: logger.OrNop(log).With("service", "StreakTracker")}
}

func (t *StreakTracker) State(ctx context.Context, userID string) (StreakState, error) {
	days, err := t.ledger.Days(ctx, userID, models.SourceLoginBonus)
	if err != nil {
		return StreakState{}, storeFailure(err)
	}
	return DeriveStreak(days), nil
}

// Advance applies the login of today. Only the request that won the login_bonus
// credit calls it.
func (t *StreakTracker) Advance(ctx context.Context, userID string, today civil.Date) (StreakState, bool, error) {
	days, err := t.ledger.Days(ctx, userID, models.SourceLoginBonus)
	if err != nil {
		return StreakState{}, false, storeFailure(err)
	}
	var prior []civil.Date
	for _, d := range days {
		if d.Before(today) {
			prior = append(prior, d)
		}
	}
	next, record := DeriveStreak(prior).Next(today)
	if record && next.Current > 1 {
		t.log.Info("New streak record", "user_id", userID, "streak", next.Current)
	}
	return next, record, nil
}

func (t *StreakTracker) Current(ctx context.Context, userID string) (StreakView, error) {
	s, err := t.State(ctx, userID)
	if err != nil {
		return StreakView{}, err
	}
	return s.View(t.cal.Today()), nil
}
