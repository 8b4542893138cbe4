package workers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-engine/calendar"
	"reward-engine/config"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
	"reward-engine/repos/memstore"
	"reward-engine/services"
)

func newEngine(t *testing.T) (*services.Engine, *repos.Store, *calendar.Calendar) {
	t.Helper()
	loc, err := calendar.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal := calendar.New(clockwork.NewFakeClockAt(time.Date(2025, time.December, 10, 3, 0, 0, 0, time.UTC)), loc)
	store := memstore.New(memstore.NewMemory())
	engine := services.NewEngine(store, cal, services.EngineConfig{
		Points:          config.DefaultRewardPoints,
		MilestoneSource: models.SourceChapterClear,
		DailyCount:      2,
	}, logger.Nop())
	return engine, store, cal
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (s *fakeObjectStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return "https://cdn.test/" + key, nil
}

func TestManifestKey(t *testing.T) {
	d, err := calendar.ParseDate("2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, "daily/all/20251201.json", ManifestKey("", d))
	assert.Equal(t, "daily/listening-drill/20251201.json", ManifestKey("Listening Drill", d))
}

func TestManifestPublisherUploadsEveryKind(t *testing.T) {
	engine, store, cal := newEngine(t)
	ctx := context.Background()
	require.NoError(t, store.Content.Upsert(ctx, []models.ContentItem{
		{ID: "q1", Kind: "quiz", Title: "Q1", Published: true},
		{ID: "q2", Kind: "quiz", Title: "Q2", Published: true},
		{ID: "q3", Kind: "quiz", Title: "Q3", Published: true},
		{ID: "c1", Kind: "card", Title: "C1", Published: true},
	}))

	objects := &fakeObjectStore{}
	pub := NewManifestPublisher(engine.Daily, objects, cal, logger.Nop())

	urls, err := pub.Publish(ctx, cal.Today())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.test/daily/all/20251210.json",
		"https://cdn.test/daily/card/20251210.json",
		"https://cdn.test/daily/quiz/20251210.json",
	}, urls)

	var got services.DailySelection
	require.NoError(t, sonic.Unmarshal(objects.objects["daily/quiz/20251210.json"], &got))
	want, err := engine.Daily.ForDate(ctx, cal.Today(), "quiz")
	require.NoError(t, err)
	assert.Equal(t, want.Seed, got.Seed)
	require.Len(t, got.Items, 2)
	assert.Equal(t, want.Items[0].ID, got.Items[0].ID)
	assert.Equal(t, want.Items[1].ID, got.Items[1].ID)
}

func TestManifestPublisherPropagatesUploadErrors(t *testing.T) {
	engine, _, cal := newEngine(t)
	pub := NewManifestPublisher(engine.Daily, &fakeObjectStore{err: errors.New("bucket gone")}, cal, logger.Nop())

	_, err := pub.Publish(context.Background(), cal.Today())
	assert.ErrorContains(t, err, "bucket gone")
}

func TestLearnerSyncMirrorsProfilesAndReferrals(t *testing.T) {
	engine, store, _ := newEngine(t)
	ctx := context.Background()

	code, err := engine.Referrals.EnsureCode(ctx, "alice", "Alice")
	require.NoError(t, err)

	updated := time.Date(2025, time.December, 9, 10, 0, 0, 0, time.UTC)
	var gotToken, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Service-Token")
		gotSince = r.URL.Query().Get("since")
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		body, _ := sonic.Marshal(ProfileChangesResponse{Users: []ProfileChange{
			{ExternalID: "bob", Username: "bob", FirstName: strPtr("Bob"), LastName: strPtr("Stone"),
				ReferredByCode: strPtr(strings.ToLower(code)), CreatedAt: updated, UpdatedAt: updated},
			{ExternalID: "carol", Username: "carol", Roles: []string{"teacher"}, CreatedAt: updated, UpdatedAt: updated},
			{ExternalID: "", Username: "ghost"},
		}})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	worker := NewLearnerSyncWorker(store.Learners, engine.Referrals, LearnerSyncConfig{
		BaseURL:      srv.URL,
		EndpointPath: "/api/v1/public/profiles",
		ServiceToken: "svc",
	}, clockwork.NewFakeClock(), logger.Nop())

	n, err := worker.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "svc", gotToken)
	assert.Empty(t, gotSince)

	bob, err := store.Learners.Get(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob.DisplayName)
	assert.Equal(t, "Bob Stone", *bob.DisplayName)

	carol, err := store.Learners.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "teacher", carol.Roles)

	bobCode, err := store.Referrals.CodeFor(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bobCode.Code, "BOBS"))

	ref, err := store.Referrals.ReferralFor(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", ref.ReferrerID)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)

	// The second pass asks only for changes after the watermark.
	_, err = worker.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.Format(time.RFC3339), gotSince)
}

func TestLearnerSyncReportsServiceErrors(t *testing.T) {
	engine, store, _ := newEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	worker := NewLearnerSyncWorker(store.Learners, engine.Referrals, LearnerSyncConfig{BaseURL: srv.URL, EndpointPath: "/profiles"}, nil, logger.Nop())
	_, err := worker.SyncOnce(context.Background())
	assert.ErrorContains(t, err, "401")
}

func strPtr(s string) *string { return &s }
