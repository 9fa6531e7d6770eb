package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, int](2, time.Minute)
	c.Set("a", 1)

	value, ok := c.Get("a")
	if !ok || value != 1 {
		t.Fatalf("unexpected value: %d, ok=%v", value, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int](2, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestTTLCacheEviction(t *testing.T) {
	c := NewTTLCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected lru eviction of oldest key")
	}
}

func TestTTLCacheModify(t *testing.T) {
	c := NewTTLCache[string, int](4, time.Minute)

	count, ok := c.Modify("k", func(current int, exists bool) int { return current + 1 })
	if !ok || count != 1 {
		t.Fatalf("unexpected first modify: %d, ok=%v", count, ok)
	}

	count, ok = c.Modify("k", func(current int, exists bool) int {
		if !exists {
			t.Fatalf("expected existing entry")
		}
		return current + 1
	})
	if !ok || count != 2 {
		t.Fatalf("unexpected second modify: %d", count)
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected deleted entry")
	}
}
