package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"

	"reward-engine/apierr"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

// ExclusionList is the ranking exclusion setting as served to administrators.
type ExclusionList struct {
	UserIDs []string `json:"userIds"`
	Version int64    `json:"version"`
}

func (e ExclusionList) Contains(userID string) bool {
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ExclusionSettings reads and writes the versioned ranking_exclusion record.
// A record that cannot be decoded is a store failure, never an empty list.
type ExclusionSettings struct {
	repo repos.SettingsRepo
	log  *logger.Logger
}

func NewExclusionSettings(repo repos.SettingsRepo, log *logger.Logger) *ExclusionSettings {
	return &ExclusionSettings{repo: repo, log: logger.OrNop(log).With("service", "ExclusionSettings")}
}

func (s *ExclusionSettings) Get(ctx context.Context) (ExclusionList, error) {
	st, err := s.repo.Get(ctx, models.SettingRankingExclusion)
	if errors.Is(err, repos.ErrNotFound) {
		return ExclusionList{UserIDs: []string{}}, nil
	}
	if err != nil {
		return ExclusionList{}, storeFailure(err)
	}
	return s.decode(st)
}

func (s *ExclusionSettings) decode(st *models.Setting) (ExclusionList, error) {
	if st.SchemaVersion != models.RankingExclusionSchema {
		s.log.Error("Unsupported exclusion schema", "schema_version", st.SchemaVersion)
		return ExclusionList{}, apierr.StoreFailure(fmt.Errorf("ranking_exclusion: unsupported schema version %d", st.SchemaVersion))
	}
	var value models.RankingExclusion
	if err := sonic.Unmarshal(st.Value, &value); err != nil {
		s.log.Error("Corrupt exclusion record", "error", err)
		return ExclusionList{}, apierr.StoreFailure(fmt.Errorf("ranking_exclusion: %w", err))
	}
	ids := normalizeIDs(value.UserIDs)
	return ExclusionList{UserIDs: ids, Version: st.Version}, nil
}

// Set replaces the list. With a nil expectedVersion the currently stored version is used,
// so a concurrent writer between read and write still yields a conflict.
func (s *ExclusionSettings) Set(ctx context.Context, userIDs []string, expectedVersion *int64, updatedBy string) (ExclusionList, error) {
	var expected int64
	if expectedVersion != nil {
		expected = *expectedVersion
	} else {
		current, err := s.Get(ctx)
		if err != nil {
			return ExclusionList{}, err
		}
		expected = current.Version
	}

	ids := normalizeIDs(userIDs)
	raw, err := sonic.Marshal(models.RankingExclusion{UserIDs: ids})
	if err != nil {
		return ExclusionList{}, apierr.StoreFailure(err)
	}
	st := &models.Setting{
		Key:           models.SettingRankingExclusion,
		SchemaVersion: models.RankingExclusionSchema,
		Value:         datatypes.JSON(raw),
		UpdatedBy:     updatedBy,
	}
	if err := s.repo.Save(ctx, st, expected); err != nil {
		if errors.Is(err, repos.ErrVersionConflict) {
			return ExclusionList{}, apierr.Conflict("ranking exclusion was modified concurrently; reload and retry", err)
		}
		return ExclusionList{}, storeFailure(err)
	}

	s.log.Info("Ranking exclusion updated", "count", len(ids), "version", st.Version, "updated_by", updatedBy)
	return ExclusionList{UserIDs: ids, Version: st.Version}, nil
}

func (s *ExclusionSettings) IsExcluded(ctx context.Context, userID string) (bool, error) {
	list, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return list.Contains(userID), nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
