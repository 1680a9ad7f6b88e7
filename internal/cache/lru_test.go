package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	want := Stats{Hits: 2, Misses: 1, Evictions: 1, Size: 2}
	if got := c.Stats(); got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	c.Set("other", "w")
	clock.t = clock.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired early")
	}

	clock.t = clock.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be gone")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("purge left %d items", c.Size())
	}
	c.Set("c", 3)
	if v, _ := c.Get("c"); v != 3 {
		t.Fatalf("cache unusable after purge")
	}
	if got := c.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Fatalf("purge should keep counters, got %+v", got)
	}
}

func TestLRUSetRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](0, time.Minute)
	c.now = clock.now

	c.Set("a", 1)
	clock.t = clock.t.Add(45 * time.Second)
	c.Set("a", 2)
	clock.t = clock.t.Add(45 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	c.Set("b", 3)
	if c.Size() != 1 {
		t.Fatalf("capacity below one should clamp to one, size = %d", c.Size())
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	clock.t = clock.t.Add(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
