// Package memstore is an in-memory implementation of every repos contract, for tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"reward-engine/calendar"
	"reward-engine/models"
	"reward-engine/repos"
)

// Memory holds all rows behind one mutex. Unique constraints mirror the gorm schema.
type Memory struct {
	mu sync.Mutex

	failure error

	events     []models.RewardEvent
	eventKeys  map[string]struct{}
	badges     []models.Badge
	userBadges []models.UserBadge
	codes      map[string]models.ReferralCode // by user
	referrals  []models.Referral
	settings   map[string]models.Setting
	content    map[string]models.ContentItem
	learners   map[string]models.Learner
}

func NewMemory() *Memory {
	return &Memory{
		eventKeys: map[string]struct{}{},
		codes:     map[string]models.ReferralCode{},
		settings:  map[string]models.Setting{},
		content:   map[string]models.ContentItem{},
		learners:  map[string]models.Learner{},
	}
}

// New returns a Store whose every contract is served by m.
func New(m *Memory) *repos.Store {
	return &repos.Store{
		Ledger:    ledger{m},
		Badges:    badges{m},
		Referrals: referrals{m},
		Settings:  settings{m},
		Content:   content{m},
		Learners:  learners{m},
	}
}

// Fail makes every subsequent call return err until Fail(nil).
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Events returns a copy of the ledger.
func (m *Memory) Events() []models.RewardEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RewardEvent(nil), m.events...)
}

func (m *Memory) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.failure != nil {
		err := m.failure
		m.mu.Unlock()
		return err
	}
	return nil
}

// ---- ledger ----

type ledger struct{ m *Memory }

func eventKey(userID string, source models.RewardSource, dedupe string) string {
	return userID + "\x00" + string(source) + "\x00" + dedupe
}

func (l ledger) Insert(ctx context.Context, ev *models.RewardEvent) error {
	if err := l.m.lock(ctx); err != nil {
		return err
	}
	defer l.m.mu.Unlock()

	key := eventKey(ev.UserID, ev.Source, ev.DedupeKey)
	if _, ok := l.m.eventKeys[key]; ok {
		return repos.ErrDuplicate
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	l.m.eventKeys[key] = struct{}{}
	l.m.events = append(l.m.events, *ev)
	return nil
}

func (l ledger) SumPoints(ctx context.Context, userID string) (int64, error) {
	if err := l.m.lock(ctx); err != nil {
		return 0, err
	}
	defer l.m.mu.Unlock()

	var total int64
	for _, ev := range l.m.events {
		if ev.UserID == userID {
			total += ev.Points
		}
	}
	return total, nil
}

func (l ledger) HasEvents(ctx context.Context, userID string) (bool, error) {
	if err := l.m.lock(ctx); err != nil {
		return false, err
	}
	defer l.m.mu.Unlock()

	for _, ev := range l.m.events {
		if ev.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (l ledger) Days(ctx context.Context, userID string, source models.RewardSource) ([]civil.Date, error) {
	if err := l.m.lock(ctx); err != nil {
		return nil, err
	}
	defer l.m.mu.Unlock()

	seen := map[civil.Date]struct{}{}
	days := []civil.Date{}
	for _, ev := range l.m.events {
		if ev.UserID != userID || ev.Source != source {
			continue
		}
		d := calendar.FromTime(ev.OccurredOn)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (l ledger) Totals(ctx context.Context, from, to *civil.Date, exclude []string) ([]models.PointTotal, error) {
	if err := l.m.lock(ctx); err != nil {
		return nil, err
	}
	defer l.m.mu.Unlock()

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	sums := map[string]int64{}
	for _, ev := range l.m.events {
		if _, ok := skip[ev.UserID]; ok {
			continue
		}
		d := calendar.FromTime(ev.OccurredOn)
		if from != nil && d.Before(*from) {
			continue
		}
		if to != nil && d.After(*to) {
			continue
		}
		sums[ev.UserID] += ev.Points
	}

	rows := make([]models.PointTotal, 0, len(sums))
	for id, total := range sums {
		rows = append(rows, models.PointTotal{UserID: id, TotalPoints: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

// ---- badges ----

type badges struct{ m *Memory }

func (b badges) ListBadges(ctx context.Context) ([]models.Badge, error) {
	if err := b.m.lock(ctx); err != nil {
		return nil, err
	}
	defer b.m.mu.Unlock()

	out := append([]models.Badge(nil), b.m.badges...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequirementValue != out[j].RequirementValue {
			return out[i].RequirementValue < out[j].RequirementValue
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (b badges) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	if err := b.m.lock(ctx); err != nil {
		return nil, err
	}
	defer b.m.mu.Unlock()

	out := []models.UserBadge{}
	for _, ub := range b.m.userBadges {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	return out, nil
}

func (b badges) Award(ctx context.Context, ub *models.UserBadge) (bool, error) {
	if err := b.m.lock(ctx); err != nil {
		return false, err
	}
	defer b.m.mu.Unlock()

	for _, existing := range b.m.userBadges {
		if existing.UserID == ub.UserID && existing.BadgeID == ub.BadgeID {
			return false, nil
		}
	}
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	b.m.userBadges = append(b.m.userBadges, *ub)
	return true, nil
}

func (b badges) UpsertBadges(ctx context.Context, list []models.Badge) error {
	if err := b.m.lock(ctx); err != nil {
		return err
	}
	defer b.m.mu.Unlock()

next:
	for _, badge := range list {
		for i := range b.m.badges {
			if b.m.badges[i].Code == badge.Code {
				id := b.m.badges[i].ID
				b.m.badges[i] = badge
				b.m.badges[i].ID = id
				continue next
			}
		}
		if badge.ID == "" {
			badge.ID = models.BadgeID(badge.Code)
		}
		b.m.badges = append(b.m.badges, badge)
	}
	return nil
}

// ---- referrals ----

type referrals struct{ m *Memory }

func (r referrals) CodeFor(ctx context.Context, userID string) (*models.ReferralCode, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	rc, ok := r.m.codes[userID]
	if !ok {
		return nil, repos.ErrNotFound
	}
	return &rc, nil
}

func (r referrals) CreateCode(ctx context.Context, rc *models.ReferralCode) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	if _, ok := r.m.codes[rc.UserID]; ok {
		return repos.ErrDuplicate
	}
	for _, existing := range r.m.codes {
		if existing.Code == rc.Code {
			return repos.ErrDuplicate
		}
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now()
	}
	r.m.codes[rc.UserID] = *rc
	return nil
}

func (r referrals) FindCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	for _, rc := range r.m.codes {
		if rc.Code == code {
			found := rc
			return &found, nil
		}
	}
	return nil, repos.ErrNotFound
}

func (r referrals) CreateReferral(ctx context.Context, ref *models.Referral) error {
	if err := r.m.lock(ctx); err != nil {
		return err
	}
	defer r.m.mu.Unlock()

	for _, existing := range r.m.referrals {
		if existing.ReferredID == ref.ReferredID {
			return repos.ErrDuplicate
		}
	}
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	if ref.Status == "" {
		ref.Status = models.ReferralStatusPending
	}
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now()
	}
	r.m.referrals = append(r.m.referrals, *ref)
	return nil
}

func (r referrals) ReferralFor(ctx context.Context, referredID string) (*models.Referral, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	for _, ref := range r.m.referrals {
		if ref.ReferredID == referredID {
			found := ref
			return &found, nil
		}
	}
	return nil, repos.ErrNotFound
}

func (r referrals) MarkCompleted(ctx context.Context, referredID string, at time.Time) (*models.Referral, bool, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, false, err
	}
	defer r.m.mu.Unlock()

	for i := range r.m.referrals {
		ref := &r.m.referrals[i]
		if ref.ReferredID != referredID {
			continue
		}
		won := false
		if ref.Status == models.ReferralStatusPending {
			ref.Status = models.ReferralStatusCompleted
			completedAt := at
			ref.CompletedAt = &completedAt
			won = true
		}
		found := *ref
		return &found, won, nil
	}
	return nil, false, repos.ErrNotFound
}

func (r referrals) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	if err := r.m.lock(ctx); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()

	out := []models.Referral{}
	for _, ref := range r.m.referrals {
		if ref.ReferrerID == referrerID {
			out = append(out, ref)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r referrals) CountCompleted(ctx context.Context, referrerID string) (int64, error) {
	if err := r.m.lock(ctx); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()

	var n int64
	for _, ref := range r.m.referrals {
		if ref.ReferrerID == referrerID && ref.Status == models.ReferralStatusCompleted {
			n++
		}
	}
	return n, nil
}

// ---- settings ----

type settings struct{ m *Memory }

func (s settings) Get(ctx context.Context, key string) (*models.Setting, error) {
	if err := s.m.lock(ctx); err != nil {
		return nil, err
	}
	defer s.m.mu.Unlock()

	st, ok := s.m.settings[key]
	if !ok {
		return nil, repos.ErrNotFound
	}
	return &st, nil
}

func (s settings) Save(ctx context.Context, st *models.Setting, expectedVersion int64) error {
	if err := s.m.lock(ctx); err != nil {
		return err
	}
	defer s.m.mu.Unlock()

	current, ok := s.m.settings[st.Key]
	switch {
	case expectedVersion == 0 && ok:
		return repos.ErrVersionConflict
	case expectedVersion != 0 && (!ok || current.Version != expectedVersion):
		return repos.ErrVersionConflict
	}
	st.Version = expectedVersion + 1
	st.UpdatedAt = time.Now()
	s.m.settings[st.Key] = *st
	return nil
}

// Put stores a raw setting row, bypassing version checks.
func (m *Memory) Put(st models.Setting) {
	m.mu.Lock()
	m.settings[st.Key] = st
	m.mu.Unlock()
}

// ---- content ----

type content struct{ m *Memory }

func (c content) Published(ctx context.Context, kind string) ([]models.ContentItem, error) {
	if err := c.m.lock(ctx); err != nil {
		return nil, err
	}
	defer c.m.mu.Unlock()

	out := []models.ContentItem{}
	for _, item := range c.m.content {
		if item.Published && (kind == "" || item.Kind == kind) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c content) Kinds(ctx context.Context) ([]string, error) {
	if err := c.m.lock(ctx); err != nil {
		return nil, err
	}
	defer c.m.mu.Unlock()

	seen := map[string]struct{}{}
	kinds := []string{}
	for _, item := range c.m.content {
		if _, ok := seen[item.Kind]; ok || !item.Published {
			continue
		}
		seen[item.Kind] = struct{}{}
		kinds = append(kinds, item.Kind)
	}
	sort.Strings(kinds)
	return kinds, nil
}

func (c content) Upsert(ctx context.Context, items []models.ContentItem) error {
	if err := c.m.lock(ctx); err != nil {
		return err
	}
	defer c.m.mu.Unlock()

	for _, item := range items {
		c.m.content[item.ID] = item
	}
	return nil
}

// ---- learners ----

type learners struct{ m *Memory }

func (l learners) Upsert(ctx context.Context, learner *models.Learner) error {
	if err := l.m.lock(ctx); err != nil {
		return err
	}
	defer l.m.mu.Unlock()

	if existing, ok := l.m.learners[learner.ExternalUserID]; ok {
		learner.ID = existing.ID
		learner.CreatedAt = existing.CreatedAt
	}
	if learner.ID == "" {
		learner.ID = uuid.NewString()
	}
	if learner.UpdatedAt.IsZero() {
		learner.UpdatedAt = time.Now()
	}
	l.m.learners[learner.ExternalUserID] = *learner
	return nil
}

func (l learners) Get(ctx context.Context, externalUserID string) (*models.Learner, error) {
	if err := l.m.lock(ctx); err != nil {
		return nil, err
	}
	defer l.m.mu.Unlock()

	learner, ok := l.m.learners[externalUserID]
	if !ok {
		return nil, repos.ErrNotFound
	}
	return &learner, nil
}

func (l learners) LastUpdated(ctx context.Context) (time.Time, error) {
	if err := l.m.lock(ctx); err != nil {
		return time.Time{}, err
	}
	defer l.m.mu.Unlock()

	var latest time.Time
	for _, learner := range l.m.learners {
		if learner.UpdatedAt.After(latest) {
			latest = learner.UpdatedAt
		}
	}
	return latest, nil
}
