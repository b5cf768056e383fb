package routing

import (
	"fmt"
	"testing"
	"time"
)

func TestStickyCacheGetSet(t *testing.T) {
	cache := NewStickyCache(0, 0)
	defer cache.Stop()

	if _, ok := cache.Get("classifier:client-a", 1); ok {
		t.Error("empty cache returned a hit")
	}

	cache.Set("classifier:client-a", "v2", 1)

	version, ok := cache.Get("classifier:client-a", 1)
	if !ok || version != "v2" {
		t.Errorf("Get = (%q, %t), want (v2, true)", version, ok)
	}
}

func TestStickyCachePolicyVersionMismatch(t *testing.T) {
	cache := NewStickyCache(0, 0)
	defer cache.Stop()

	cache.Set("classifier:client-a", "v2", 1)

	if _, ok := cache.Get("classifier:client-a", 2); ok {
		t.Error("entry pinned under snapshot 1 served a lookup for snapshot 2")
	}
}

func TestStickyCacheTTLExpiry(t *testing.T) {
	cache := NewStickyCache(20*time.Millisecond, 0)
	defer cache.Stop()

	cache.Set("classifier:client-a", "v2", 1)

	if _, ok := cache.Get("classifier:client-a", 1); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := cache.Get("classifier:client-a", 1); ok {
		t.Error("expired entry served a hit")
	}
}

func TestStickyCacheLRUEviction(t *testing.T) {
	cache := NewStickyCache(0, 3)
	defer cache.Stop()

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("classifier:client-%d", i), "v1", 1)
		// Distinct access times so LRU order is well defined.
		time.Sleep(time.Millisecond)
	}

	// Touch client-0 so client-1 becomes the least recently used.
	if _, ok := cache.Get("classifier:client-0", 1); !ok {
		t.Fatal("expected hit for client-0")
	}
	time.Sleep(time.Millisecond)

	cache.Set("classifier:client-3", "v1", 1)

	if cache.Len() != 3 {
		t.Errorf("len = %d, want 3 after eviction", cache.Len())
	}
	if _, ok := cache.Get("classifier:client-1", 1); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := cache.Get("classifier:client-0", 1); !ok {
		t.Error("recently accessed entry was evicted")
	}
}

func TestStickyCacheUpdateExistingKeyNoEviction(t *testing.T) {
	cache := NewStickyCache(0, 2)
	defer cache.Stop()

	cache.Set("classifier:client-a", "v1", 1)
	cache.Set("classifier:client-b", "v1", 1)

	// Re-pinning an existing key must not evict anyone.
	cache.Set("classifier:client-a", "v2", 1)

	if cache.Len() != 2 {
		t.Errorf("len = %d, want 2", cache.Len())
	}
	if version, ok := cache.Get("classifier:client-a", 1); !ok || version != "v2" {
		t.Errorf("Get = (%q, %t), want (v2, true)", version, ok)
	}
	if _, ok := cache.Get("classifier:client-b", 1); !ok {
		t.Error("unrelated entry evicted by an update")
	}
}
