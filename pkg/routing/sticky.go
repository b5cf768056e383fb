package routing

import (
	"sync"
	"time"
)

// StickyCache pins client keys to backend versions with TTL and LRU
// eviction. Entries are tagged with the policy snapshot they were created
// under; entries from older snapshots are treated as misses, so a policy
// change re-draws every client without an explicit flush.
type StickyCache struct {
	// entries maps "kind:clientKey" to sticky entries
	entries map[string]*StickyEntry

	// ttl is the time-to-live for cache entries (0 = no expiry)
	ttl time.Duration

	// maxEntries is the maximum number of entries (0 = unlimited)
	maxEntries int

	// mu protects concurrent access to the cache
	mu sync.RWMutex

	// stopCh signals the cleanup goroutine to stop
	stopCh chan struct{}

	// stopOnce guards stopCh
	stopOnce sync.Once

	// cleanupInterval is how often to run expiry cleanup
	cleanupInterval time.Duration
}

// NewStickyCache creates a sticky cache with the specified TTL and max
// entries. If ttl is 0, entries never expire. If maxEntries is 0, the cache
// is unbounded.
func NewStickyCache(ttl time.Duration, maxEntries int) *StickyCache {
	cleanupInterval := time.Minute
	if ttl > 0 {
		cleanupInterval = ttl / 2
		if cleanupInterval < 10*time.Second {
			cleanupInterval = 10 * time.Second
		}
	}

	cache := &StickyCache{
		entries:         make(map[string]*StickyEntry),
		ttl:             ttl,
		maxEntries:      maxEntries,
		stopCh:          make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	if ttl > 0 {
		go cache.cleanupExpired()
	}

	return cache
}

// Get retrieves the pinned version for a key under the given policy
// snapshot. It returns ("", false) when the key is absent, expired, or
// pinned under a different snapshot.
func (c *StickyCache) Get(key string, policyVersion int64) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		return "", false
	}
	if entry.PolicyVersion != policyVersion {
		c.mu.RUnlock()
		return "", false
	}
	if c.ttl > 0 && time.Now().After(entry.ExpiresAt) {
		c.mu.RUnlock()
		return "", false
	}
	version := entry.Version
	c.mu.RUnlock()

	c.mu.Lock()
	// Re-check entry exists (might have been evicted between locks)
	if entry, ok := c.entries[key]; ok {
		entry.LastAccessedAt = time.Now()
		entry.AccessCount++
	}
	c.mu.Unlock()

	return version, true
}

// Set pins a key to a version under a policy snapshot, evicting the least
// recently used entry if the cache is full.
func (c *StickyCache) Set(key, version string, policyVersion int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLRU()
		}
	}

	now := time.Now()
	expiresAt := time.Time{} // Zero time = no expiry
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	c.entries[key] = &StickyEntry{
		Version:        version,
		PolicyVersion:  policyVersion,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    1,
	}
}

// Len returns the number of entries currently held, including entries that
// have expired but not yet been cleaned up.
func (c *StickyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the background cleanup goroutine.
func (c *StickyCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (c *StickyCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.LastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// cleanupExpired periodically removes expired entries.
func (c *StickyCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
