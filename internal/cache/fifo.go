// Package cache provides the bounded run cache used by reduction sessions.
//
// EVICTION POLICY: first-in, first-out by insertion. Get never refreshes an
// entry's position, so a frequently re-read run is evicted as soon as it is
// the oldest insertion while rarely used ones may persist. This matches the
// observed behavior of the reduction application and is kept on purpose
// until product requirements ask for LRU.
package cache

// DefaultCapacity is the default number of cached runs (MAX_CACHE).
const DefaultCapacity = 50

// FIFO is a bounded, insertion-ordered key/value store.
//
// Thread-safety: FIFO is not safe for concurrent use. It is owned by a single
// session, which serializes access.
type FIFO[K comparable, V any] struct {
	capacity int
	order    []K
	entries  map[K]V
	onEvict  func(K, V)
}

// New creates a FIFO holding at most capacity entries. A capacity below 1
// is raised to 1.
func New[K comparable, V any](capacity int) *FIFO[K, V] {
	return &FIFO[K, V]{
		capacity: max(capacity, 1),
		entries:  make(map[K]V),
	}
}

// OnEvict registers a hook called for every entry dropped by capacity
// eviction. Remove and Clear do not call it.
func (c *FIFO[K, V]) OnEvict(fn func(K, V)) {
	c.onEvict = fn
}

// Capacity returns the maximum number of entries.
func (c *FIFO[K, V]) Capacity() int {
	return c.capacity
}

// Get returns the value stored under key. It does not change eviction order.
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key at the back of the queue, then evicts from the
// front while the cache is over capacity. Re-putting an existing key moves
// it to the back.
func (c *FIFO[K, V]) Put(key K, value V) {
	if _, exists := c.entries[key]; exists {
		c.removeFromOrder(key)
	}
	c.entries[key] = value
	c.order = append(c.order, key)

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		var zero K
		c.order[0] = zero
		c.order = c.order[1:]
		evicted := c.entries[oldest]
		delete(c.entries, oldest)
		if c.onEvict != nil {
			c.onEvict(oldest, evicted)
		}
	}
}

// Remove deletes key. It reports whether the key was present.
func (c *FIFO[K, V]) Remove(key K) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.removeFromOrder(key)
	return true
}

// Clear drops every entry.
func (c *FIFO[K, V]) Clear() {
	c.order = nil
	c.entries = make(map[K]V)
}

// Len returns the number of entries.
func (c *FIFO[K, V]) Len() int {
	return len(c.order)
}

// Keys returns the keys from oldest to newest insertion.
func (c *FIFO[K, V]) Keys() []K {
	out := make([]K, len(c.order))
	copy(out, c.order)
	return out
}

// Values returns the values from oldest to newest insertion.
func (c *FIFO[K, V]) Values() []V {
	out := make([]V, len(c.order))
	for i, k := range c.order {
		out[i] = c.entries[k]
	}
	return out
}

func (c *FIFO[K, V]) removeFromOrder(key K) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
