package attemptlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verdant-ai/verdant/pkg/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustNew(t *testing.T, retention int, opts ...Option) *Log {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "attempts_test.db"), retention, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleAttempt(requestID string, n int, outcome models.Outcome) models.ProviderAttempt {
	return models.ProviderAttempt{
		RequestID:     requestID,
		Fingerprint:   "fp:0123456789abcdef",
		Feature:       models.FeatureIdentify,
		EndpointIndex: n - 1,
		EndpointName:  "primary",
		AttemptNumber: n,
		StartedAt:     base.Add(time.Duration(n) * time.Second),
		TimeoutMs:     20000,
		LatencyMs:     150,
		Outcome:       outcome,
	}
}

func TestRecordAndQuery(t *testing.T) {
	l := mustNew(t, 30)
	ctx := context.Background()

	failed := sampleAttempt("req-1", 1, models.OutcomeHTTPError)
	failed.StatusCode = 503
	failed.Error = "upstream unavailable"
	if err := l.Record(ctx, failed); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, sampleAttempt("req-1", 2, models.OutcomeSuccess)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, sampleAttempt("req-2", 1, models.OutcomeTimeout)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := l.Query(ctx, models.AttemptQueryOpts{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(got))
	}
	if got[0].AttemptNumber != 2 || got[1].AttemptNumber != 1 {
		t.Errorf("expected newest first, got %d then %d", got[0].AttemptNumber, got[1].AttemptNumber)
	}
	if got[1].StatusCode != 503 || got[1].Error != "upstream unavailable" {
		t.Errorf("unexpected failed attempt: %+v", got[1])
	}
	if !got[1].StartedAt.Equal(failed.StartedAt) {
		t.Errorf("started_at round trip: got %v want %v", got[1].StartedAt, failed.StartedAt)
	}

	timeouts, err := l.Query(ctx, models.AttemptQueryOpts{Outcome: models.OutcomeTimeout})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(timeouts) != 1 || timeouts[0].RequestID != "req-2" {
		t.Errorf("unexpected outcome filter result: %+v", timeouts)
	}
}

func TestQueryLimitAndSince(t *testing.T) {
	l := mustNew(t, 30)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_ = l.Record(ctx, sampleAttempt("req", i, models.OutcomeTransport))
	}

	got, _ := l.Query(ctx, models.AttemptQueryOpts{Limit: 2})
	if len(got) != 2 {
		t.Errorf("expected 2 with limit, got %d", len(got))
	}

	got, _ = l.Query(ctx, models.AttemptQueryOpts{Since: base.Add(4 * time.Second)})
	if len(got) != 2 {
		t.Errorf("expected 2 since +4s, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, 30)
	ctx := context.Background()
	_ = l.Record(ctx, sampleAttempt("a", 1, models.OutcomeTimeout))
	_ = l.Record(ctx, sampleAttempt("b", 1, models.OutcomeTimeout))
	_ = l.Record(ctx, sampleAttempt("c", 1, models.OutcomeSuccess))

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	counts := map[models.Outcome]int{}
	for _, s := range stats {
		if s.Day != "2026-03-01" {
			t.Errorf("unexpected day %q", s.Day)
		}
		counts[s.Outcome] += s.Count
	}
	if counts[models.OutcomeTimeout] != 2 || counts[models.OutcomeSuccess] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestCleanup(t *testing.T) {
	now := base
	l := mustNew(t, 7, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = l.Record(ctx, sampleAttempt("old", 1, models.OutcomeSuccess))
	now = base.AddDate(0, 0, 10)
	recent := sampleAttempt("new", 1, models.OutcomeSuccess)
	recent.StartedAt = now
	_ = l.Record(ctx, recent)

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned attempt, got %d", n)
	}
	got, _ := l.Query(ctx, models.AttemptQueryOpts{})
	if len(got) != 1 || got[0].RequestID != "new" {
		t.Errorf("unexpected remaining attempts: %+v", got)
	}
}

func TestNilLogRecord(t *testing.T) {
	var l *Log
	if err := l.Record(context.Background(), sampleAttempt("x", 1, models.OutcomeSuccess)); err != nil {
		t.Errorf("nil log should ignore records, got %v", err)
	}
}
