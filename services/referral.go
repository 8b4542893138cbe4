package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reward-engine/apierr"
	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
)

const (
	ReferralCodeLength = 8
	codePrefixMax      = 4
	// No 0/O or 1/I so codes survive being read aloud.
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeAttempts = 8
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// NormalizeCode makes referral code matching case-insensitive.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// codePrefix is up to four ASCII letters transliterated from a display name.
func codePrefix(displayName string) string {
	s := strings.ReplaceAll(slug.Make(unidecode.Unidecode(displayName)), "-", "")
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
			if b.Len() == codePrefixMax {
				break
			}
		}
	}
	return strings.ToUpper(b.String())
}

func randomSuffix(n int) string {
	u := uuid.New()
	out := make([]byte, n)
	for i := range out {
		out[i] = codeAlphabet[int(u[i%len(u)])%len(codeAlphabet)]
	}
	return string(out)
}

type Referrer struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

type CodeValidation struct {
	Valid    bool      `json:"valid"`
	Referrer *Referrer `json:"referrer,omitempty"`
}

type RegisterResult struct {
	Registered      bool `json:"registered"`
	Valid           bool `json:"valid"`
	AlreadyReferred bool `json:"alreadyReferred"`
	// NotEligible is set when the learner was already active before redeeming.
	NotEligible bool `json:"notEligible,omitempty"`
}

type ReferralEntry struct {
	ReferredID  string                `json:"referredUserId"`
	Status      models.ReferralStatus `json:"status"`
	CreatedAt   time.Time             `json:"createdAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

type ReferralSummary struct {
	IsExcluded         bool            `json:"isExcluded,omitempty"`
	ReferralCode       string          `json:"referralCode,omitempty"`
	TotalReferrals     int             `json:"totalReferrals"`
	CompletedReferrals int             `json:"completedReferrals"`
	PendingReferrals   int             `json:"pendingReferrals"`
	Referrals          []ReferralEntry `json:"referrals"`
}

// ReferralProgram issues referral codes and tracks referrals from pending to completed.
type ReferralProgram struct {
	repo      repos.ReferralRepo
	ledger    repos.LedgerRepo
	learners  repos.LearnerRepo
	exclusion *ExclusionSettings
	cal       *calendar.Calendar
	log       *logger.Logger
}

func NewReferralProgram(repo repos.ReferralRepo, ledger repos.LedgerRepo, learners repos.LearnerRepo, exclusion *ExclusionSettings, cal *calendar.Calendar, log *logger.Logger) *ReferralProgram {
	return &ReferralProgram{
		repo:      repo,
		ledger:    ledger,
		learners:  learners,
		exclusion: exclusion,
		cal:       cal,
		log:       logger.OrNop(log).With("service", "ReferralProgram"),
	}
}

// EnsureCode returns the learner's code, issuing one on first use. Issued codes never change.
func (p *ReferralProgram) EnsureCode(ctx context.Context, userID, displayName string) (string, error) {
	if rc, err := p.repo.CodeFor(ctx, userID); err == nil {
		return rc.Code, nil
	} else if !errors.Is(err, repos.ErrNotFound) {
		return "", storeFailure(err)
	}

	if displayName == "" {
		displayName = p.displayName(ctx, userID)
	}
	prefix := codePrefix(displayName)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := prefix + randomSuffix(ReferralCodeLength-len(prefix))
		err := p.repo.CreateCode(ctx, &models.ReferralCode{UserID: userID, Code: code})
		if err == nil {
			p.log.Info("Referral code issued", "user_id", userID, "code", code)
			return code, nil
		}
		if !errors.Is(err, repos.ErrDuplicate) {
			return "", storeFailure(err)
		}
		// Either another request issued this learner's code first, or the code is taken.
		if rc, err := p.repo.CodeFor(ctx, userID); err == nil {
			return rc.Code, nil
		}
	}
	return "", apierr.StoreFailure(fmt.Errorf("could not issue a unique referral code for %s", userID))
}

func (p *ReferralProgram) displayName(ctx context.Context, userID string) string {
	if p.learners == nil {
		return ""
	}
	l, err := p.learners.Get(ctx, userID)
	if err != nil {
		return ""
	}
	if l.DisplayName != nil && *l.DisplayName != "" {
		return *l.DisplayName
	}
	return l.Username
}

// Validate never fails on bad input: malformed or unknown codes are simply invalid.
func (p *ReferralProgram) Validate(ctx context.Context, code string) (CodeValidation, error) {
	rc, ok, err := p.lookup(ctx, code)
	if err != nil || !ok {
		return CodeValidation{}, err
	}
	return CodeValidation{
		Valid:    true,
		Referrer: &Referrer{UserID: rc.UserID, DisplayName: p.displayName(ctx, rc.UserID)},
	}, nil
}

func (p *ReferralProgram) lookup(ctx context.Context, code string) (*models.ReferralCode, bool, error) {
	code = NormalizeCode(code)
	if !codePattern.MatchString(code) {
		return nil, false, nil
	}
	rc, err := p.repo.FindCode(ctx, code)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeFailure(err)
	}
	return rc, true, nil
}

// Register attributes referredID to the owner of code as a pending referral.
// Only new learners qualify: anyone already credited in the ledger is refused.
func (p *ReferralProgram) Register(ctx context.Context, referredID, code string) (RegisterResult, error) {
	rc, ok, err := p.lookup(ctx, code)
	if err != nil {
		return RegisterResult{}, err
	}
	if !ok {
		return RegisterResult{}, nil
	}
	if rc.UserID == referredID {
		return RegisterResult{}, apierr.Field("code", "cannot be your own referral code")
	}

	active, err := p.ledger.HasEvents(ctx, referredID)
	if err != nil {
		return RegisterResult{}, storeFailure(err)
	}
	if active {
		p.log.Info("Referral refused for active learner", "referrer_id", rc.UserID, "referred_id", referredID)
		return RegisterResult{Valid: true, NotEligible: true}, nil
	}

	ref := &models.Referral{
		ID:         uuid.NewString(),
		ReferrerID: rc.UserID,
		ReferredID: referredID,
		CodeUsed:   rc.Code,
		Status:     models.ReferralStatusPending,
		CreatedAt:  p.cal.Now(),
	}
	if err := p.repo.CreateReferral(ctx, ref); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			return RegisterResult{Valid: true, AlreadyReferred: true}, nil
		}
		return RegisterResult{}, storeFailure(err)
	}
	p.log.Info("Referral registered", "referrer_id", rc.UserID, "referred_id", referredID)
	return RegisterResult{Registered: true, Valid: true}, nil
}

// Complete moves the referral of referredID to completed. The bool is true only
// for the caller that performed the transition; a learner without a referral yields (nil, false).
func (p *ReferralProgram) Complete(ctx context.Context, referredID string) (*models.Referral, bool, error) {
	ref, won, err := p.repo.MarkCompleted(ctx, referredID, p.cal.Now())
	if errors.Is(err, repos.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeFailure(err)
	}
	if won {
		p.log.Info("Referral completed", "referrer_id", ref.ReferrerID, "referred_id", referredID)
	}
	return ref, won, nil
}

// Summary is the learner's referral dashboard. Excluded learners only see that they are excluded.
func (p *ReferralProgram) Summary(ctx context.Context, userID, displayName string) (ReferralSummary, error) {
	excluded, err := p.exclusion.IsExcluded(ctx, userID)
	if err != nil {
		return ReferralSummary{}, err
	}
	if excluded {
		return ReferralSummary{IsExcluded: true, Referrals: []ReferralEntry{}}, nil
	}

	code, err := p.EnsureCode(ctx, userID, displayName)
	if err != nil {
		return ReferralSummary{}, err
	}
	refs, err := p.repo.ListByReferrer(ctx, userID)
	if err != nil {
		return ReferralSummary{}, storeFailure(err)
	}

	s := ReferralSummary{ReferralCode: code, TotalReferrals: len(refs), Referrals: make([]ReferralEntry, 0, len(refs))}
	for _, r := range refs {
		switch r.Status {
		case models.ReferralStatusCompleted:
			s.CompletedReferrals++
		default:
			s.PendingReferrals++
		}
		s.Referrals = append(s.Referrals, ReferralEntry{
			ReferredID:  r.ReferredID,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return s, nil
}
