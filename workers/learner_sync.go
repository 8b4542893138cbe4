package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"reward-engine/apierr"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
	"reward-engine/services"
)

// ProfileChange matches one entry of the profile service's change feed.
type ProfileChange struct {
	ExternalID     string    `json:"external_id"`
	Username       string    `json:"username"`
	DisplayName    *string   `json:"display_name,omitempty"`
	FirstName      *string   `json:"first_name,omitempty"`
	LastName       *string   `json:"last_name,omitempty"`
	Roles          []string  `json:"roles,omitempty"`
	AccountStatus  string    `json:"account_status"`
	ReferredByCode *string   `json:"referred_by_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the top-level body of the change feed.
type ProfileChangesResponse struct {
	Users []ProfileChange `json:"users"`
}

func (p ProfileChange) displayName() string {
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) != "" {
		return strings.TrimSpace(*p.DisplayName)
	}
	var parts []string
	for _, s := range []*string{p.FirstName, p.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return p.Username
}

type LearnerSyncConfig struct {
	BaseURL      string // e.g. "http://profiles:8500"
	EndpointPath string // e.g. "/api/v1/public/profiles"
	ServiceToken string
	Interval     time.Duration
}

// LearnerSyncWorker mirrors learner profiles into the learners table, issues
// referral codes, and records referrals from profiles that signed up with a code.
type LearnerSyncWorker struct {
	learners   repos.LearnerRepo
	referrals  *services.ReferralProgram
	cfg        LearnerSyncConfig
	clock      clockwork.Clock
	httpClient *http.Client
	log        *logger.Logger
}

func NewLearnerSyncWorker(learners repos.LearnerRepo, referrals *services.ReferralProgram, cfg LearnerSyncConfig, clock clockwork.Clock, log *logger.Logger) *LearnerSyncWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LearnerSyncWorker{
		learners:   learners,
		referrals:  referrals,
		cfg:        cfg,
		clock:      clock,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.OrNop(log).With("worker", "LearnerSync"),
	}
}

func (w *LearnerSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 Starting learner sync worker (profile service → learners)")
	go w.run(ctx)
}

func (w *LearnerSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("⚠️ Initial sync failed", "error", err)
	}

	ticker := w.clock.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ Sync batch failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("⏹️ Learner sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the newest mirrored learner and applies them.
// It returns how many learners were upserted.
func (w *LearnerSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.learners.LastUpdated(ctx)
	if err != nil {
		return 0, fmt.Errorf("read sync watermark: %w", err)
	}
	changes, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		w.log.Debug("✅ No learner changes", "since", since)
		return 0, nil
	}

	var upserted, failed int
	for _, change := range changes {
		if err := w.apply(ctx, change); err != nil {
			failed++
			w.log.Warn("⚠️ Failed to apply learner change", "external_id", change.ExternalID, "error", err)
			continue
		}
		upserted++
	}
	w.log.Info("✅ Learners synced", "received", len(changes), "upserted", upserted, "errors", failed)
	return upserted, nil
}

func (w *LearnerSyncWorker) fetch(ctx context.Context, since time.Time) ([]ProfileChange, error) {
	base, err := url.Parse(w.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.cfg.BaseURL, err)
	}
	endpoint := base.JoinPath(w.cfg.EndpointPath)
	if !since.IsZero() {
		q := endpoint.Query()
		q.Set("since", since.UTC().Format(time.RFC3339))
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.cfg.ServiceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}

	var out ProfileChangesResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}
	return out.Users, nil
}

func (w *LearnerSyncWorker) apply(ctx context.Context, change ProfileChange) error {
	if strings.TrimSpace(change.ExternalID) == "" {
		return errors.New("missing external_id")
	}
	name := change.displayName()
	now := w.clock.Now()

	learner := &models.Learner{
		ExternalUserID: change.ExternalID,
		Username:       change.Username,
		DisplayName:    &name,
		Roles:          strings.Join(change.Roles, ","),
		ReferredByCode: change.ReferredByCode,
		LastSyncedAt:   &now,
		Timestamps: models.Timestamps{
			CreatedAt: change.CreatedAt,
			UpdatedAt: change.UpdatedAt,
		},
	}
	if err := w.learners.Upsert(ctx, learner); err != nil {
		return fmt.Errorf("upsert learner: %w", err)
	}

	if _, err := w.referrals.EnsureCode(ctx, change.ExternalID, name); err != nil {
		return fmt.Errorf("issue referral code: %w", err)
	}

	if change.ReferredByCode == nil || strings.TrimSpace(*change.ReferredByCode) == "" {
		return nil
	}
	res, err := w.referrals.Register(ctx, change.ExternalID, *change.ReferredByCode)
	if err != nil {
		// A self-referral is a bad profile, not a sync failure.
		if apierr.StatusOf(err) == http.StatusBadRequest {
			w.log.Warn("Ignoring referral code", "external_id", change.ExternalID, "error", err)
			return nil
		}
		return fmt.Errorf("register referral: %w", err)
	}
	if !res.Valid {
		w.log.Warn("Unknown referral code on profile", "external_id", change.ExternalID)
	}
	return nil
}
