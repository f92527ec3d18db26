package cache

import (
	"testing"
	"time"
)

func TestCacheSetGetShouldStoreAndRetrieve(t *testing.T) {
	c := New(Config{TTL: 5 * time.Minute})

	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit for key k")
	}
	if got.(string) != "v" {
		t.Errorf("expected v, got %v", got)
	}
}

func TestCacheGetNonExistentShouldReportAbsent(t *testing.T) {
	c := New(Config{})

	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for unset key")
	}
}

func TestCacheSetShouldOverwriteUnconditionally(t *testing.T) {
	c := New(Config{})

	c.Set("k", 1)
	c.Set("k", 2)

	got, ok := c.Get("k")
	if !ok || got.(int) != 2 {
		t.Errorf("expected 2, got %v (hit=%v)", got, ok)
	}
}

func TestCacheExpiryShouldTreatExpiredAsAbsentAndDelete(t *testing.T) {
	c := New(Config{TTL: 5 * time.Minute})

	c.SetTTL("k", "v", 30*time.Millisecond)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should be live immediately after set")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("entry should be absent after TTL elapses")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be deleted on access, size=%d", c.Len())
	}
}

func TestCacheDeleteShouldRemoveAndBeIdempotent(t *testing.T) {
	c := New(Config{})

	c.Set("k", "v")
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("deleted key should be absent")
	}

	// no-op on an absent key
	c.Delete("k")
}

func TestCacheClearShouldEmptyStats(t *testing.T) {
	c := New(Config{})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if s := c.Stats(); s.Size != 0 {
		t.Errorf("expected size 0 after clear, got %d", s.Size)
	}
}

func TestCacheStatsShouldSweepExpiredEntries(t *testing.T) {
	c := New(Config{TTL: 5 * time.Minute})

	c.SetTTL("dead", 1, 10*time.Millisecond)
	c.Set("live", 2)

	time.Sleep(30 * time.Millisecond)

	s := c.Stats()
	if s.Size != 1 {
		t.Fatalf("expected 1 live entry, got %d", s.Size)
	}
	if len(s.Keys) != 1 || s.Keys[0] != "live" {
		t.Errorf("expected only live key, got %v", s.Keys)
	}
}

func TestCacheSweepOnSetShouldBoundGrowth(t *testing.T) {
	c := New(Config{TTL: 5 * time.Minute})

	// entries that are written once and never read again
	for i := 0; i < 50; i++ {
		c.SetTTL(string(rune('a'+i)), i, time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	// enough further sets to cross the sweep interval
	for i := 0; i < sweepEvery; i++ {
		c.Set("live", i)
	}

	if n := c.Len(); n != 1 {
		t.Errorf("sweep should have dropped expired write-only keys, size=%d", n)
	}
}
