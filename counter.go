package stripedmap

import "sync"

// counters tracks the live entry count and the current capacity.
//
// Lock order: the counters mutex is only ever taken while holding zero or
// more bucket locks, never the other way round.
type counters struct {
	mu       sync.Mutex
	size     int
	capacity int
}

func (c *counters) add(delta int) {
	c.mu.Lock()
	c.size += delta
	c.mu.Unlock()
}

func (c *counters) load() (size, capacity int) {
	c.mu.Lock()
	size, capacity = c.size, c.capacity
	c.mu.Unlock()
	return
}

func (c *counters) resetSize() {
	c.mu.Lock()
	c.size = 0
	c.mu.Unlock()
}

func (c *counters) setCapacity(capacity int) {
	c.mu.Lock()
	c.capacity = capacity
	c.mu.Unlock()
}

// overloaded reports whether size exceeds capacity*loadFactor.
func (c *counters) overloaded(loadFactor float64) bool {
	size, capacity := c.load()
	return float64(size) > float64(capacity)*loadFactor
}

// exceeds is overloaded against the given capacity instead of the recorded one.
func (c *counters) exceeds(capacity int, loadFactor float64) bool {
	size, _ := c.load()
	return float64(size) > float64(capacity)*loadFactor
}
