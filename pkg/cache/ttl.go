package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of entries when WithCapacity is not given.
const DefaultCapacity = 10_000

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache with per-entry expiry and LRU eviction.
// A TTL of zero disables caching: Set is a no-op and every Get is a miss.
type TTLCache[K comparable, V any] struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithCapacity sets the maximum number of entries kept in the cache.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithClock overrides the time source used to compute expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTLCache creates a cache whose entries live for ttl.
// Panics on a negative ttl.
func NewTTLCache[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	if ttl < 0 {
		panic("cache: ttl must not be negative")
	}

	o := &options{capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	return &TTLCache[K, V]{
		ttl:      ttl,
		capacity: o.capacity,
		now:      o.now,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// TTL returns the configured time-to-live.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if it exists and has not expired.
// Expired entries are removed on access.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.ttl == 0 {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*ttlEntry[K, V])
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, replacing any previous entry and resetting its expiry.
func (c *TTLCache[K, V]) Set(key K, value V) {
	if c.ttl == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return
	}

	elem := c.eviction.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// SetIfAbsent stores value only when no live entry exists for key.
// Reports whether the value was stored.
func (c *TTLCache[K, V]) SetIfAbsent(key K, value V) bool {
	if c.ttl == 0 {
		return true
	}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		if c.now().Before(entry.expiresAt) {
			c.mu.Unlock()
			return false
		}
		c.removeElement(elem)
	}
	c.mu.Unlock()

	c.Set(key, value)
	return true
}

// Invalidate removes a single entry. Reports whether it existed.
func (c *TTLCache[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// Clear removes all entries.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Len returns the number of entries, including expired ones not yet removed.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*ttlEntry[K, V])
	delete(c.items, entry.key)
}
