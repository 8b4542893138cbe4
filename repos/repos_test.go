package repos_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"reward-engine/calendar"
	"reward-engine/database"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

func newStore(t *testing.T) *repos.Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repos.NewStore(db, logger.Nop())
}

func event(user string, source models.RewardSource, day civil.Date, points int64) *models.RewardEvent {
	return &models.RewardEvent{
		ID:         user + "-" + string(source) + "-" + day.String(),
		UserID:     user,
		Source:     source,
		DedupeKey:  day.String(),
		Points:     points,
		OccurredOn: calendar.ToTime(day),
	}
}

var day0 = civil.Date{Year: 2025, Month: time.December, Day: 10}

func TestLedgerInsertRejectsDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ledger.Insert(ctx, event("u1", models.SourceLoginBonus, day0, 3)))

	dup := event("u1", models.SourceLoginBonus, day0, 3)
	dup.ID = "another-id"
	err := s.Ledger.Insert(ctx, dup)
	assert.ErrorIs(t, err, repos.ErrDuplicate)

	// Same day, different source is a separate action.
	require.NoError(t, s.Ledger.Insert(ctx, event("u1", models.SourceChapterClear, day0, 10)))

	total, err := s.Ledger.SumPoints(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 13, total)

	has, err := s.Ledger.HasEvents(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.Ledger.HasEvents(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLedgerDaysAscending(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, offset := range []int{4, 0, 2, 1} {
		require.NoError(t, s.Ledger.Insert(ctx, event("u1", models.SourceLoginBonus, day0.AddDays(offset), 3)))
	}
	require.NoError(t, s.Ledger.Insert(ctx, event("u1", models.SourceChapterClear, day0.AddDays(3), 10)))

	days, err := s.Ledger.Days(ctx, "u1", models.SourceLoginBonus)
	require.NoError(t, err)
	assert.Equal(t, []civil.Date{day0, day0.AddDays(1), day0.AddDays(2), day0.AddDays(4)}, days)

	none, err := s.Ledger.Days(ctx, "nobody", models.SourceLoginBonus)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLedgerTotalsWindowAndExclusion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ledger.Insert(ctx, event("a", models.SourceChapterClear, day0, 10)))
	require.NoError(t, s.Ledger.Insert(ctx, event("b", models.SourceChapterClear, day0, 10)))
	require.NoError(t, s.Ledger.Insert(ctx, event("c", models.SourceTemporaryQuest, day0, 20)))
	require.NoError(t, s.Ledger.Insert(ctx, event("d", models.SourceLoginBonus, day0.AddDays(-10), 3)))

	all, err := s.Ledger.Totals(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.PointTotal{
		{UserID: "c", TotalPoints: 20},
		{UserID: "a", TotalPoints: 10},
		{UserID: "b", TotalPoints: 10},
		{UserID: "d", TotalPoints: 3},
	}, all)

	from, to := day0.AddDays(-6), day0
	weekly, err := s.Ledger.Totals(ctx, &from, &to, []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, []models.PointTotal{
		{UserID: "a", TotalPoints: 10},
		{UserID: "b", TotalPoints: 10},
	}, weekly)
}

func TestBadgeAwardOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Badges.UpsertBadges(ctx, models.DefaultBadges))
	require.NoError(t, s.Badges.UpsertBadges(ctx, models.DefaultBadges))

	badges, err := s.Badges.ListBadges(ctx)
	require.NoError(t, err)
	require.Len(t, badges, len(models.DefaultBadges))
	for i := 1; i < len(badges); i++ {
		assert.LessOrEqual(t, badges[i-1].RequirementValue, badges[i].RequirementValue)
	}

	first := &models.UserBadge{ID: "ub-1", UserID: "u1", BadgeID: badges[0].ID, EarnedAt: time.Now()}
	won, err := s.Badges.Award(ctx, first)
	require.NoError(t, err)
	assert.True(t, won)

	again := &models.UserBadge{ID: "ub-2", UserID: "u1", BadgeID: badges[0].ID, EarnedAt: time.Now()}
	won, err = s.Badges.Award(ctx, again)
	require.NoError(t, err)
	assert.False(t, won)

	owned, err := s.Badges.ListUserBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestReferralLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Referrals.CreateCode(ctx, &models.ReferralCode{UserID: "ref", Code: "ALIC7KQ2"}))
	assert.ErrorIs(t, s.Referrals.CreateCode(ctx, &models.ReferralCode{UserID: "other", Code: "ALIC7KQ2"}), repos.ErrDuplicate)
	assert.ErrorIs(t, s.Referrals.CreateCode(ctx, &models.ReferralCode{UserID: "ref", Code: "BOB22222"}), repos.ErrDuplicate)

	rc, err := s.Referrals.FindCode(ctx, "ALIC7KQ2")
	require.NoError(t, err)
	assert.Equal(t, "ref", rc.UserID)

	_, err = s.Referrals.FindCode(ctx, "NOPE0000")
	assert.ErrorIs(t, err, repos.ErrNotFound)

	ref := &models.Referral{ID: "r1", ReferrerID: "ref", ReferredID: "new", CodeUsed: "ALIC7KQ2", Status: models.ReferralStatusPending}
	require.NoError(t, s.Referrals.CreateReferral(ctx, ref))
	dup := &models.Referral{ID: "r2", ReferrerID: "ref", ReferredID: "new", CodeUsed: "ALIC7KQ2", Status: models.ReferralStatusPending}
	assert.ErrorIs(t, s.Referrals.CreateReferral(ctx, dup), repos.ErrDuplicate)

	got, won, err := s.Referrals.MarkCompleted(ctx, "new", time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.ReferralStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	_, won, err = s.Referrals.MarkCompleted(ctx, "new", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	n, err := s.Referrals.CountCompleted(ctx, "ref")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := s.Referrals.ListByReferrer(ctx, "ref")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSettingsOptimisticVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Settings.Get(ctx, models.SettingRankingExclusion)
	assert.ErrorIs(t, err, repos.ErrNotFound)

	st := &models.Setting{
		Key:           models.SettingRankingExclusion,
		SchemaVersion: models.RankingExclusionSchema,
		Value:         datatypes.JSON(`{"user_ids":["t1"]}`),
	}
	require.NoError(t, s.Settings.Save(ctx, st, 0))
	assert.EqualValues(t, 1, st.Version)

	stale := &models.Setting{Key: st.Key, SchemaVersion: 1, Value: datatypes.JSON(`{"user_ids":[]}`)}
	assert.ErrorIs(t, s.Settings.Save(ctx, stale, 0), repos.ErrVersionConflict)

	st.Value = datatypes.JSON(`{"user_ids":["t1","t2"]}`)
	require.NoError(t, s.Settings.Save(ctx, st, 1))
	assert.EqualValues(t, 2, st.Version)
	assert.ErrorIs(t, s.Settings.Save(ctx, stale, 1), repos.ErrVersionConflict)

	got, err := s.Settings.Get(ctx, st.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
	assert.JSONEq(t, `{"user_ids":["t1","t2"]}`, string(got.Value))
}

func TestContentPublishedOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Content.Upsert(ctx, []models.ContentItem{
		{ID: "q-3", Kind: "quiz", Title: "three", Published: true},
		{ID: "q-1", Kind: "quiz", Title: "one", Published: true},
		{ID: "q-2", Kind: "quiz", Title: "draft", Published: false},
		{ID: "f-1", Kind: "flashcard", Title: "card", Published: true},
	}))

	quiz, err := s.Content.Published(ctx, "quiz")
	require.NoError(t, err)
	require.Len(t, quiz, 2)
	assert.Equal(t, "q-1", quiz[0].ID)
	assert.Equal(t, "q-3", quiz[1].ID)

	kinds, err := s.Content.Kinds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"flashcard", "quiz"}, kinds)
}

func TestLearnerUpsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	name := "Alice"
	require.NoError(t, s.Learners.Upsert(ctx, &models.Learner{ExternalUserID: "ext-1", Username: "alice", DisplayName: &name}))
	require.NoError(t, s.Learners.Upsert(ctx, &models.Learner{ExternalUserID: "ext-1", Username: "alice2", DisplayName: &name}))

	got, err := s.Learners.Get(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)

	last, err := s.Learners.LastUpdated(ctx)
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	_, err = s.Learners.Get(ctx, "missing")
	assert.ErrorIs(t, err, repos.ErrNotFound)
}
