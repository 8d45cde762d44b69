// Package ledger enforces per-tier feature quotas over rolling windows.
//
// Each feature and window pair is either within its limit or at it. Before
// every read the record's windows are checked for expiry; an elapsed window
// has its counters zeroed and restarts at the current time. Every mutation,
// including those resets, is persisted before the call returns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
)

// ErrQuotaExceeded is returned when a feature has no allowance left.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Unlimited marks a status entry without a limit.
const Unlimited = -1

// QuotaError describes the window that blocked a request.
type QuotaError struct {
	UserID  string
	Feature models.Feature
	Window  models.Window
	Limit   int
	ResetIn time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s %s limit of %d reached for %s, resets in %s",
		e.Window, e.Feature, e.Limit, e.UserID, e.ResetIn.Round(time.Second))
}

// Unwrap lets errors.Is match ErrQuotaExceeded.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// Store loads and saves usage records.
type Store interface {
	Load(ctx context.Context, userID string) (*models.UsageRecord, bool, error)
	Save(ctx context.Context, rec *models.UsageRecord) error
}

// Ledger tracks feature usage per user.
type Ledger struct {
	store   Store
	tiers   map[models.Tier]models.TierLimits
	windows map[models.Window]time.Duration
	now     func() time.Time
	mu      sync.Mutex // serializes read-modify-write of records
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for window resets.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over store with the tier limits and window lengths in cfg.
func New(store Store, cfg config.UsageConfig, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		tiers:   cfg.Tiers,
		windows: cfg.Windows,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanUse reports whether userID may use feature now. Premium users always may.
func (l *Ledger) CanUse(ctx context.Context, userID string, feature models.Feature) (bool, error) {
	err := l.Check(ctx, userID, feature)
	if errors.Is(err, ErrQuotaExceeded) {
		return false, nil
	}
	return err == nil, err
}

// Check returns a *QuotaError when any configured window for feature is at
// its limit.
func (l *Ledger) Check(ctx context.Context, userID string, feature models.Feature) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	return l.check(rec, feature)
}

// Track records one use of feature. It is rejected with a *QuotaError when
// the feature is already at its limit.
func (l *Ledger) Track(ctx context.Context, userID string, feature models.Feature) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := l.check(rec, feature); err != nil {
		return err
	}
	for _, w := range models.Windows {
		rec.Counters[w][feature]++
	}
	rec.UpdatedAt = l.now()
	if err := l.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("track usage: %w", err)
	}

	if qerr := l.check(rec, feature); qerr != nil {
		logger.WithFields(logrus.Fields{
			"user":    userID,
			"feature": feature,
		}).Info("feature reached its limit")
	}
	return nil
}

// Status returns usage against every limit that applies to userID.
// Unlimited features are reported once for the daily window with Limit and
// Remaining set to Unlimited.
func (l *Ledger) Status(ctx context.Context, userID string) (models.Tier, []models.UsageStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	var out []models.UsageStatus
	for _, f := range models.Features {
		limits := l.limits(rec.Tier, f)
		if len(limits) == 0 {
			out = append(out, models.UsageStatus{
				Feature:   f,
				Window:    models.WindowDaily,
				Used:      rec.Count(models.WindowDaily, f),
				Limit:     Unlimited,
				Remaining: Unlimited,
				ResetAt:   l.resetAt(rec, models.WindowDaily),
			})
			continue
		}
		for _, w := range models.Windows {
			limit, ok := limits[w]
			if !ok {
				continue
			}
			used := rec.Count(w, f)
			out = append(out, models.UsageStatus{
				Feature:   f,
				Window:    w,
				Used:      used,
				Limit:     limit,
				Remaining: max(limit-used, 0),
				ResetAt:   l.resetAt(rec, w),
			})
		}
	}
	return rec.Tier, out, nil
}

// TimeUntilReset returns how long until userID's daily window rolls over.
func (l *Ledger) TimeUntilReset(ctx context.Context, userID string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return max(l.resetAt(rec, models.WindowDaily).Sub(l.now()), 0), nil
}

// Record returns a copy of userID's current record after window resets.
func (l *Ledger) Record(ctx context.Context, userID string) (models.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return models.UsageRecord{}, err
	}
	return clone(rec), nil
}

// SetTier assigns tier to userID. Counters are kept, so an upgrade raises the
// ceiling for the rest of the current window.
func (l *Ledger) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	if _, err := models.ParseTier(string(tier)); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	if rec.Tier == tier {
		return nil
	}
	rec.Tier = tier
	rec.UpdatedAt = l.now()
	if err := l.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	logger.WithFields(logrus.Fields{"user": userID, "tier": tier}).Info("tier changed")
	return nil
}

// Upgrade moves userID to the premium tier.
func (l *Ledger) Upgrade(ctx context.Context, userID string) error {
	return l.SetTier(ctx, userID, models.TierPremium)
}

// Downgrade moves userID to the free tier.
func (l *Ledger) Downgrade(ctx context.Context, userID string) error {
	return l.SetTier(ctx, userID, models.TierFree)
}

// load fetches or creates the record and applies window resets. Callers hold mu.
func (l *Ledger) load(ctx context.Context, userID string) (*models.UsageRecord, error) {
	now := l.now()
	rec, ok, err := l.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	dirty := false
	if !ok {
		rec = models.NewUsageRecord(userID, now)
		dirty = true
	}
	if fill(rec, now) {
		dirty = true
	}
	if l.resetElapsed(rec, now) {
		dirty = true
	}
	if dirty {
		rec.UpdatedAt = now
		if err := l.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save usage: %w", err)
		}
	}
	return rec, nil
}

// resetElapsed zeroes every window whose length has passed.
func (l *Ledger) resetElapsed(rec *models.UsageRecord, now time.Time) bool {
	changed := false
	for _, w := range models.Windows {
		length := l.windows[w]
		if length <= 0 {
			continue
		}
		if now.Before(rec.WindowStart[w].Add(length)) {
			continue
		}
		rec.Counters[w] = make(map[models.Feature]int)
		rec.WindowStart[w] = now
		changed = true
	}
	return changed
}

func (l *Ledger) check(rec *models.UsageRecord, feature models.Feature) error {
	if rec.Tier == models.TierPremium {
		return nil
	}
	limits := l.limits(rec.Tier, feature)
	for _, w := range models.Windows {
		limit, ok := limits[w]
		if !ok || rec.Count(w, feature) < limit {
			continue
		}
		return &QuotaError{
			UserID:  rec.UserID,
			Feature: feature,
			Window:  w,
			Limit:   limit,
			ResetIn: max(l.resetAt(rec, w).Sub(l.now()), 0),
		}
	}
	return nil
}

func (l *Ledger) limits(tier models.Tier, feature models.Feature) models.FeatureLimits {
	if tier == models.TierPremium {
		return nil
	}
	return l.tiers[tier][feature]
}

func (l *Ledger) resetAt(rec *models.UsageRecord, w models.Window) time.Time {
	return rec.WindowStart[w].Add(l.windows[w])
}

// fill repairs records written before a window existed.
func fill(rec *models.UsageRecord, now time.Time) bool {
	changed := false
	if rec.Tier == "" {
		rec.Tier = models.TierFree
		changed = true
	}
	if rec.Counters == nil {
		rec.Counters = make(map[models.Window]map[models.Feature]int)
	}
	if rec.WindowStart == nil {
		rec.WindowStart = make(map[models.Window]time.Time)
	}
	for _, w := range models.Windows {
		if rec.Counters[w] == nil {
			rec.Counters[w] = make(map[models.Feature]int)
		}
		if rec.WindowStart[w].IsZero() {
			rec.WindowStart[w] = now
			changed = true
		}
	}
	return changed
}

func clone(rec *models.UsageRecord) models.UsageRecord {
	out := *rec
	out.Counters = make(map[models.Window]map[models.Feature]int, len(rec.Counters))
	for w, counts := range rec.Counters {
		out.Counters[w] = make(map[models.Feature]int, len(counts))
		for f, n := range counts {
			out.Counters[w][f] = n
		}
	}
	out.WindowStart = make(map[models.Window]time.Time, len(rec.WindowStart))
	for w, t := range rec.WindowStart {
		out.WindowStart[w] = t
	}
	return out
}
