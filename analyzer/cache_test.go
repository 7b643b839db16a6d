package analyzer

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("entries expire after the ttl", func(t *testing.T) {
		c := newTTLCache[int](time.Minute, 10)
		c.now = clock
		c.set("a", 1)

		if v, ok := c.get("a"); !ok || v != 1 {
			t.Fatalf("get() = %v, %v", v, ok)
		}
		now = now.Add(time.Minute)
		if _, ok := c.get("a"); ok {
			t.Error("entry survived its ttl")
		}
		c.cleanup()
		if n := c.len(); n != 0 {
			t.Errorf("len() = %d after cleanup, want 0", n)
		}
	})

	t.Run("oldest entries are evicted over the size limit", func(t *testing.T) {
		c := newTTLCache[string](time.Hour, 3)
		c.now = clock
		for i := 0; i < 5; i++ {
			now = now.Add(time.Second)
			c.set(fmt.Sprintf("k%d", i), "v")
		}
		if n := c.len(); n != 3 {
			t.Fatalf("len() = %d, want 3", n)
		}
		for _, key := range []string{"k0", "k1"} {
			if _, ok := c.get(key); ok {
				t.Errorf("%s should have been evicted", key)
			}
		}
		if _, ok := c.get("k4"); !ok {
			t.Error("newest entry was evicted")
		}
	})

	t.Run("ttl can be changed", func(t *testing.T) {
		c := newTTLCache[int](time.Hour, 0)
		c.now = clock
		c.set("a", 1)
		now = now.Add(2 * time.Minute)
		c.setTTL(time.Minute)
		if _, ok := c.get("a"); ok {
			t.Error("entry survived a shorter ttl")
		}
		if c.getTTL() != time.Minute {
			t.Errorf("getTTL() = %v", c.getTTL())
		}
	})
}

func TestGenerateCacheKey(t *testing.T) {
	if generateCacheKey("https://a.test") == generateCacheKey("https://b.test") {
		t.Error("different urls share a key")
	}
	if got := generateCacheKey("https://a.test"); len(got) != 32 {
		t.Errorf("key length = %d, want 32", len(got))
	}
}
