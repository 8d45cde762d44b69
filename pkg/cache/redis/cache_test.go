package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/verdant-ai/verdant/pkg/models"
)

// newTestCache connects to VERDANT_TEST_REDIS or skips.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("VERDANT_TEST_REDIS")
	if addr == "" {
		t.Skip("VERDANT_TEST_REDIS not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	c := New(client, time.Hour)
	t.Cleanup(func() {
		_, _ = c.Clear(context.Background(), false)
		_ = c.Close()
	})
	return c
}

func TestConnectParsesURL(t *testing.T) {
	client, err := Connect(context.Background(), "redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	opts := client.Options()
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Errorf("unexpected options: addr=%s db=%d", opts.Addr, opts.DB)
	}

	plain, err := Connect(context.Background(), "cache.internal:6379")
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	if plain.Options().Addr != "cache.internal:6379" {
		t.Errorf("unexpected addr %s", plain.Options().Addr)
	}

	if _, err := Connect(context.Background(), "redis://%zz"); err == nil {
		t.Error("expected parse error")
	}
}

func TestPutGetExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }

	payload := models.Profile{Feature: models.FeatureIdentify, Plant: &models.PlantProfile{Name: "Monstera"}}
	if err := c.Put(ctx, "fp:1:identify", payload, time.Hour); err != nil {
		t.Fatal(err)
	}
	entry, ok := c.Get(ctx, "fp:1:identify")
	if !ok || entry.Payload.Plant.Name != "Monstera" {
		t.Fatalf("expected hit, got %+v ok=%v", entry, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "fp:1:identify"); ok {
		t.Error("expected miss after stored TTL lapsed")
	}
}

func TestClearExpiredOnlyLeavesCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }

	payload := models.Profile{Feature: models.FeatureDiagnose}
	if err := c.Put(ctx, "short", payload, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "long", payload, 3*time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.client.Set(ctx, keyPrefix+"garbled", "{", time.Hour).Err(); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	removed, err := c.Clear(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("clear touched counters: hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry left, got %d", stats.Entries)
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("expected unexpired entry to survive")
	}
}
