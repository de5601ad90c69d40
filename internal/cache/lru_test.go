package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // evicts "a"

	if _, found := c.Get("a"); found {
		t.Error("oldest entry survived eviction")
	}
	if v, found := c.Get("b"); !found || v != "2" {
		t.Errorf("b: %q, %v", v, found)
	}
	if c.Size() != 2 {
		t.Errorf("size %d, want 2", c.Size())
	}
}

func TestLRUCacheGetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")    // "a" is now the most recently used
	c.Set("c", 3) // evicts "b"

	if _, found := c.Get("a"); !found {
		t.Error("recently read entry was evicted")
	}
	if _, found := c.Get("b"); found {
		t.Error("least recently used entry survived")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("k", 42)
	if v, found := c.Get("k"); !found || v != 42 {
		t.Fatalf("fresh entry: %d, %v", v, found)
	}

	time.Sleep(20 * time.Millisecond)
	if _, found := c.Get("k"); found {
		t.Error("expired entry still served")
	}
	if c.Size() != 0 {
		t.Errorf("size %d after lazy drop, want 0", c.Size())
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("cleanup removed %d entries, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("size %d after cleanup, want 1", c.Size())
	}
	if _, found := c.Get("fresh"); !found {
		t.Error("live entry removed by cleanup")
	}
}
