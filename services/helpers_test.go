package services

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"reward-engine/calendar"
	"reward-engine/config"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
	"reward-engine/repos/memstore"
)

type fixture struct {
	engine *Engine
	mem    *memstore.Memory
	store  *repos.Store
	clock  *clockwork.FakeClock
	cal    *calendar.Calendar
}

// 2025-12-10 12:00 in Asia/Tokyo.
var fixtureStart = time.Date(2025, time.December, 10, 3, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := calendar.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(fixtureStart)
	cal := calendar.New(clock, loc)
	mem := memstore.NewMemory()
	store := memstore.New(mem)
	require.NoError(t, store.Badges.UpsertBadges(context.Background(), models.DefaultBadges))

	engine := NewEngine(store, cal, EngineConfig{
		Points:          config.DefaultRewardPoints,
		MilestoneSource: models.SourceChapterClear,
		DailyCount:      3,
	}, logger.Nop())
	return &fixture{engine: engine, mem: mem, store: store, clock: clock, cal: cal}
}

// nextDay moves the clock forward one calendar day.
func (f *fixture) nextDay() {
	f.clock.Advance(24 * time.Hour)
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}
