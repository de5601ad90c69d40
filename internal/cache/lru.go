// Package cache provides the in-memory cache backing the HTTP layer's
// rebuilt-archive responses.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a fixed-capacity cache with a per-entry TTL. The least
// recently used entry is evicted when capacity is exceeded; expired
// entries are dropped lazily on Get and in bulk by CleanExpired.
type LRUCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List
}

type entry[V any] struct {
	key      string
	value    V
	deadline time.Time
}

func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	return &LRUCache[V]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the live value for key and marks it most recently used.
// An expired entry is removed and reported as a miss.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if time.Now().After(e.deadline) {
		c.drop(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores value under key with a fresh TTL, evicting the least
// recently used entry when the cache is full.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[V]{key: key, value: value, deadline: time.Now().Add(c.ttl)}

	if elem, ok := c.index[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.index[key] = c.order.PushFront(e)

	if c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.drop(oldest)
		}
	}
}

// CleanExpired removes every expired entry and returns how many were
// dropped. Run periodically so entries that are never read again do not
// pin their values until eviction.
func (c *LRUCache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[V]).deadline) {
			c.drop(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Size returns the number of entries currently held, expired or not.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[V]) drop(elem *list.Element) {
	delete(c.index, elem.Value.(*entry[V]).key)
	c.order.Remove(elem)
}
