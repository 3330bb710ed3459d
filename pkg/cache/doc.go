// Package cache provides a generic, thread-safe in-memory cache whose entries
// expire after a fixed time-to-live and which is bounded by an LRU capacity.
//
// It is meant for process-local, stale-on-read caches: entries are never
// refreshed in the background, an expired entry is simply reported as a miss
// and dropped lazily. Cross-instance invalidation is out of scope; callers
// accept that cached values may be up to one TTL old.
//
// # Usage
//
//	c := cache.NewTTLCache[string, map[string]string](3*time.Minute, cache.WithCapacity(10_000))
//
//	c.Set("tenant:1", features)
//	if v, ok := c.Get("tenant:1"); ok {
//		// use v
//	}
//	c.Invalidate("tenant:1")
//	c.Clear()
//
// # Testing
//
// The clock is injectable, so expiry can be exercised without sleeping:
//
//	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
//	c := cache.NewTTLCache[string, int](time.Minute, cache.WithClock(func() time.Time { return now }))
//
// # Complexity
//
// Get, Set and Invalidate are O(1). Clear is O(n).
package cache
