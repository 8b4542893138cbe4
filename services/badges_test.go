package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-engine/models"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		value, requirement int64
		want               int
	}{
		{0, 100, 0},
		{33, 100, 33},
		{99, 100, 99},
		{100, 100, 100},
		{250, 100, 100},
		{1, 3, 33},
		{2, 3, 66},
		{5, 0, 100},
		{-4, 10, 0},
	}
	for _, tt := range tests {
		if got := ProgressPercent(tt.value, tt.requirement); got != tt.want {
			t.Errorf("ProgressPercent(%d, %d) = %d, want %d", tt.value, tt.requirement, got, tt.want)
		}
	}
}

func codes(badges []models.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Code)
	}
	return out
}

func TestEvaluateUnlocksEveryCrossedThresholdOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ledger.Credit(ctx, CreditRequest{UserID: "u1", Source: models.SourceReferralBonus, Points: 120, DedupeKey: "referral:seed"})
	require.NoError(t, err)

	awarded, err := f.engine.Badges.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"POINTS_10", "POINTS_100"}, codes(awarded))

	again, err := f.engine.Badges.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBadgesAreNeverRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ledger.Credit(ctx, CreditRequest{UserID: "u1", Source: models.SourceChapterClear, Points: 10})
	require.NoError(t, err)
	_, err = f.engine.Badges.Evaluate(ctx, "u1")
	require.NoError(t, err)

	// Raising the bar after the fact does not take the badge away.
	bumped := models.DefaultBadges[0]
	bumped.RequirementValue = 1_000_000
	require.NoError(t, f.store.Badges.UpsertBadges(ctx, []models.Badge{bumped}))

	_, err = f.engine.Badges.Evaluate(ctx, "u1")
	require.NoError(t, err)

	progress, err := f.engine.Badges.Progress(ctx, "u1")
	require.NoError(t, err)
	var found bool
	for _, p := range progress {
		if p.Code == bumped.Code {
			found = true
			assert.True(t, p.Earned)
			assert.NotNil(t, p.EarnedAt)
			assert.Equal(t, 100, p.Progress)
		}
	}
	assert.True(t, found)
}

func TestBadgeProgressIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ledger.Credit(ctx, CreditRequest{UserID: "u1", Source: models.SourceTemporaryQuest, Points: 20})
	require.NoError(t, err)

	progress, err := f.engine.Badges.Progress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, progress, len(models.DefaultBadges))

	byCode := map[string]BadgeProgress{}
	for _, p := range progress {
		byCode[p.Code] = p
	}
	assert.False(t, byCode["POINTS_10"].Earned, "progress must not award")
	assert.Equal(t, 100, byCode["POINTS_10"].Progress)
	assert.Equal(t, 20, byCode["POINTS_100"].Progress)
	assert.Equal(t, 0, byCode["STREAK_7"].Progress)

	owned, err := f.store.Badges.ListUserBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestStreakBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.engine.CreditAction(ctx, "u1", models.SourceLoginBonus, nil)
		require.NoError(t, err)
		f.nextDay()
	}
	owned, err := f.store.Badges.ListUserBadges(ctx, "u1")
	require.NoError(t, err)

	held := map[string]bool{}
	for _, ub := range owned {
		held[ub.BadgeID] = true
	}
	assert.True(t, held[models.BadgeID("STREAK_7")])
	assert.True(t, held[models.BadgeID("POINTS_10")])
	assert.False(t, held[models.BadgeID("STREAK_30")])
}
