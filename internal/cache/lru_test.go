package cache

import (
	"testing"
	"time"
)

func TestTTL_BasicOperations(t *testing.T) {
	c, err := NewTTL[string, int](3, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%v, %v), want (1, true)", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}

	// Filling past capacity evicts the least recently used key.
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if v, ok := c.Get("d"); !ok || v != 4 {
		t.Errorf("Get(d) = (%v, %v), want (4, true)", v, ok)
	}
}

func TestTTL_Expiration(t *testing.T) {
	c, err := NewTTL[string, string](10, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Error("k should be present before expiration")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("k should have expired")
	}
}

func TestTTL_Stats(t *testing.T) {
	c, err := NewTTL[string, int](5, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	s := c.Stats()
	if s.Hits != 2 {
		t.Errorf("Stats.Hits = %d, want 2", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("Stats.Misses = %d, want 1", s.Misses)
	}
	if s.Size != 1 {
		t.Errorf("Stats.Size = %d, want 1", s.Size)
	}
}

func TestTTL_Remove(t *testing.T) {
	c, err := NewTTL[string, int](5, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	c.Set("a", 1)
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should have been removed")
	}
}
