package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/ledger/sqlite"
	"github.com/verdant-ai/verdant/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func usageConfig(limit int) config.UsageConfig {
	cfg := config.Default().Usage
	cfg.Tiers = map[models.Tier]models.TierLimits{
		models.TierFree: {
			models.FeatureIdentify: {models.WindowDaily: limit},
			models.FeatureDiagnose: {models.WindowDaily: 3, models.WindowMonthly: 4},
		},
	}
	return cfg
}

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestLedger(t *testing.T, limit int) (*Ledger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := openStore(t, filepath.Join(t.TempDir(), "usage.db"))
	return New(store, usageConfig(limit), WithClock(clock.Now)), clock
}

func mustCanUse(t *testing.T, l *Ledger, user string, f models.Feature) bool {
	t.Helper()
	ok, err := l.CanUse(context.Background(), user, f)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

func TestWindowLimitAndReset(t *testing.T) {
	l, clock := newTestLedger(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !mustCanUse(t, l, "u", models.FeatureIdentify) {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if err := l.Track(ctx, "u", models.FeatureIdentify); err != nil {
			t.Fatalf("track %d: %v", i+1, err)
		}
	}
	if mustCanUse(t, l, "u", models.FeatureIdentify) {
		t.Fatal("expected canUse false at 5/5")
	}

	clock.Advance(24*time.Hour + time.Second)
	if !mustCanUse(t, l, "u", models.FeatureIdentify) {
		t.Fatal("expected canUse true after the window elapsed")
	}
	rec, err := l.Record(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if n := rec.Count(models.WindowDaily, models.FeatureIdentify); n != 0 {
		t.Errorf("expected counter reset to 0, got %d", n)
	}
	if !rec.WindowStart[models.WindowDaily].Equal(clock.Now()) {
		t.Errorf("window should restart at now, got %v", rec.WindowStart[models.WindowDaily])
	}
}

func TestTrackRejectedAtLimit(t *testing.T) {
	l, _ := newTestLedger(t, 1)
	ctx := context.Background()

	if err := l.Track(ctx, "u", models.FeatureIdentify); err != nil {
		t.Fatal(err)
	}
	err := l.Track(ctx, "u", models.FeatureIdentify)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	var qerr *QuotaError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected *QuotaError, got %T", err)
	}
	if qerr.Feature != models.FeatureIdentify || qerr.Window != models.WindowDaily || qerr.Limit != 1 {
		t.Errorf("unexpected quota error: %+v", qerr)
	}
	if qerr.ResetIn != 24*time.Hour {
		t.Errorf("expected 24h until reset, got %v", qerr.ResetIn)
	}

	rec, _ := l.Record(ctx, "u")
	if n := rec.Count(models.WindowDaily, models.FeatureIdentify); n != 1 {
		t.Errorf("rejected track must not increment, got %d", n)
	}
}

func TestFeaturesAreIndependent(t *testing.T) {
	l, _ := newTestLedger(t, 1)
	ctx := context.Background()

	_ = l.Track(ctx, "u", models.FeatureIdentify)
	if !mustCanUse(t, l, "u", models.FeatureDiagnose) {
		t.Error("diagnose should not be limited by identify usage")
	}
	if !mustCanUse(t, l, "u", models.FeatureChat) {
		t.Error("a feature without limits should always be allowed")
	}
	if !mustCanUse(t, l, "other", models.FeatureIdentify) {
		t.Error("users must not share counters")
	}
}

func TestEveryWindowMustHaveRoom(t *testing.T) {
	l, clock := newTestLedger(t, 5)
	ctx := context.Background()

	// diagnose: 3 per day, 4 per month
	for i := 0; i < 3; i++ {
		if err := l.Track(ctx, "u", models.FeatureDiagnose); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(25 * time.Hour)
	if err := l.Track(ctx, "u", models.FeatureDiagnose); err != nil {
		t.Fatal(err)
	}
	err := l.Check(ctx, "u", models.FeatureDiagnose)
	var qerr *QuotaError
	if !errors.As(err, &qerr) || qerr.Window != models.WindowMonthly {
		t.Fatalf("expected the monthly window to block, got %v", err)
	}
}

func TestUpgradeKeepsCountsAndLiftsLimit(t *testing.T) {
	l, _ := newTestLedger(t, 2)
	ctx := context.Background()

	_ = l.Track(ctx, "u", models.FeatureIdentify)
	_ = l.Track(ctx, "u", models.FeatureIdentify)
	if mustCanUse(t, l, "u", models.FeatureIdentify) {
		t.Fatal("expected free user at limit")
	}

	if err := l.Upgrade(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if !mustCanUse(t, l, "u", models.FeatureIdentify) {
		t.Fatal("premium users are always allowed")
	}
	if err := l.Track(ctx, "u", models.FeatureIdentify); err != nil {
		t.Fatalf("premium track: %v", err)
	}
	rec, _ := l.Record(ctx, "u")
	if rec.Tier != models.TierPremium || rec.Count(models.WindowDaily, models.FeatureIdentify) != 3 {
		t.Errorf("unexpected record after upgrade: %+v", rec)
	}

	if err := l.Downgrade(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if mustCanUse(t, l, "u", models.FeatureIdentify) {
		t.Error("downgrade should restore the free limit against kept counts")
	}
}

func TestSetTierRejectsUnknown(t *testing.T) {
	l, _ := newTestLedger(t, 5)
	if err := l.SetTier(context.Background(), "u", "gold"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	first := New(openStore(t, path), usageConfig(5), WithClock(clock.Now))
	for i := 0; i < 5; i++ {
		if err := first.Track(ctx, "u", models.FeatureIdentify); err != nil {
			t.Fatal(err)
		}
	}

	restarted := New(openStore(t, path), usageConfig(5), WithClock(clock.Now))
	if mustCanUse(t, restarted, "u", models.FeatureIdentify) {
		t.Error("a restart must not grant extra allowance")
	}
}

func TestStatusAndTimeUntilReset(t *testing.T) {
	l, clock := newTestLedger(t, 5)
	ctx := context.Background()

	_ = l.Track(ctx, "u", models.FeatureIdentify)
	_ = l.Track(ctx, "u", models.FeatureIdentify)
	clock.Advance(6 * time.Hour)

	tier, statuses, err := l.Status(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if tier != models.TierFree {
		t.Errorf("expected free tier, got %s", tier)
	}
	var found bool
	for _, s := range statuses {
		switch {
		case s.Feature == models.FeatureIdentify && s.Window == models.WindowDaily:
			found = true
			if s.Used != 2 || s.Limit != 5 || s.Remaining != 3 {
				t.Errorf("unexpected identify status: %+v", s)
			}
		case s.Feature == models.FeatureChat:
			if s.Limit != Unlimited {
				t.Errorf("chat has no limit configured, got %+v", s)
			}
		}
	}
	if !found {
		t.Error("missing identify status")
	}

	left, err := l.TimeUntilReset(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if left != 18*time.Hour {
		t.Errorf("expected 18h until reset, got %v", left)
	}
}

func TestConcurrentTrackNeverOvershoots(t *testing.T) {
	l, _ := newTestLedger(t, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Track(ctx, "u", models.FeatureIdentify); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 5 {
		t.Errorf("expected exactly 5 accepted tracks, got %d", accepted)
	}
}
