package query

import (
	"testing"
	"time"
)

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := NewCache(8, time.Minute)
	if got := c.Get("missing"); got != nil {
		t.Fatalf("Get on empty cache = %v, want nil", got)
	}
	c.Set("k", []string{"a", "b"})
	got, ok := c.Get("k").([]string)
	if !ok || len(got) != 2 {
		t.Fatalf("Get after Set = %v", c.Get("k"))
	}
}

func TestCacheEntryExpires(t *testing.T) {
	c := NewCache(8, 10*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(30 * time.Millisecond)
	if got := c.Get("k"); got != nil {
		t.Fatalf("expected expired entry to be gone, got %v", got)
	}
}

func TestCacheEvictsUnderMaxSize(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	stats := c.GetStats()
	if stats["total"] > 2 {
		t.Fatalf("expected eviction to keep the cache at maxSize, got stats %v", stats)
	}
}

func TestCacheClearAndDelete(t *testing.T) {
	c := NewCache(8, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if got := c.Get("a"); got != nil {
		t.Fatalf("expected deleted entry to be gone, got %v", got)
	}
	c.Set("b", 2)
	c.Clear()
	if stats := c.GetStats(); stats["total"] != 0 {
		t.Fatalf("expected Clear to empty the cache, got stats %v", stats)
	}
}
