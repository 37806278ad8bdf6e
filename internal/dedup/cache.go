// Package dedup remembers recently accepted payloads so that a repeat inside
// a short window is ignored no matter which input source produced it.
package dedup

import (
	"sync"
	"time"
)

const (
	DefaultWindow = 2 * time.Second
	DefaultSweep  = 60 * time.Second
)

// Cache maps payload to the time it was last accepted.
// It is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	sweep  time.Duration
}

// New returns a cache that suppresses repeats younger than window and forgets
// entries older than sweep. Non-positive values select the defaults.
func New(window, sweep time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	if sweep < window {
		sweep = DefaultSweep
		if sweep < window {
			sweep = window
		}
	}
	return &Cache{
		seen:   make(map[string]time.Time),
		window: window,
		sweep:  sweep,
	}
}

// ShouldSuppress reports whether payload was accepted less than the window
// ago. A suppressed call leaves the cache untouched; otherwise payload is
// recorded at now and stale entries are swept.
func (c *Cache) ShouldSuppress(payload string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[payload]; ok && now.Sub(last) < c.window {
		return true
	}

	c.seen[payload] = now
	for p, ts := range c.seen {
		if now.Sub(ts) >= c.sweep {
			delete(c.seen, p)
		}
	}
	return false
}

// Len returns the number of remembered payloads.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
