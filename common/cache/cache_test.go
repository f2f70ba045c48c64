package cache

import (
	"context"
	"testing"
	"time"

	"github.com/orbitalflow/engine/common/logger"
)

func newTestCache() *MemoryCache {
	return NewMemoryCache(logger.New("error", "json"))
}

func TestMemoryCacheSetThenGetRoundTrips(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(v) != "v1" {
		t.Errorf("Get = %q, %v, want v1, true", v, ok)
	}
}

func TestMemoryCacheGetMissingKeyReturnsNotFound(t *testing.T) {
	c := newTestCache()
	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestMemoryCacheExpiredEntryIsNotReturned(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	if err := c.Set(ctx, "k1", []byte("v1"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected expired entry to be treated as missing")
	}
}

func TestMemoryCacheDeleteRemovesKey(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := c.Get(ctx, "k1")
	if ok {
		t.Error("expected key to be gone after Delete")
	}
}

func TestMemoryCacheStatsReportsEntryCount(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)

	stats := c.Stats()
	if stats["entries"] != 2 {
		t.Errorf("entries = %v, want 2", stats["entries"])
	}
	if stats["type"] != "memory" {
		t.Errorf("type = %v, want memory", stats["type"])
	}
}
