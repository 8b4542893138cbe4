package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"reward-engine/apierr"
	"reward-engine/models"
)

func TestExclusionRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.engine.Exclusion.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.UserIDs)
	assert.Zero(t, empty.Version)

	saved, err := f.engine.Exclusion.Set(ctx, []string{" t2", "t1", "t2", ""}, nil, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, saved.UserIDs)
	assert.EqualValues(t, 1, saved.Version)

	got, err := f.engine.Exclusion.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	excluded, err := f.engine.Exclusion.IsExcluded(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, excluded)
}

func TestExclusionStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Exclusion.Set(ctx, []string{"a"}, nil, "admin")
	require.NoError(t, err)

	v1 := int64(1)
	_, err = f.engine.Exclusion.Set(ctx, []string{"a", "b"}, &v1, "admin")
	require.NoError(t, err)

	_, err = f.engine.Exclusion.Set(ctx, []string{"c"}, &v1, "other-admin")
	require.Error(t, err)
	assert.Equal(t, 409, apierr.StatusOf(err))

	got, err := f.engine.Exclusion.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.UserIDs)
}

func TestCorruptExclusionIsAStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mem.Put(models.Setting{
		Key:           models.SettingRankingExclusion,
		SchemaVersion: models.RankingExclusionSchema,
		Version:       3,
		Value:         datatypes.JSON(`{"user_ids": "not-a-list"`),
	})

	_, err := f.engine.Exclusion.Get(ctx)
	require.Error(t, err)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeStoreFailure, ae.Code)

	// Ranking must fail too rather than silently show excluded users.
	_, err = f.engine.Ranking.Ranking(ctx, PeriodAllTime)
	assert.Equal(t, 500, apierr.StatusOf(err))
}

func TestUnknownExclusionSchemaIsAStoreFailure(t *testing.T) {
	f := newFixture(t)

	f.mem.Put(models.Setting{
		Key:           models.SettingRankingExclusion,
		SchemaVersion: models.RankingExclusionSchema + 1,
		Version:       1,
		Value:         datatypes.JSON(`{"user_ids":["x"]}`),
	})
	_, err := f.engine.Exclusion.Get(context.Background())
	assert.Equal(t, 500, apierr.StatusOf(err))
}
