// Package dedupe remembers recently relayed posts so a redelivered update
// (long-poll replay after a restart or reconnect) is not relayed twice.
package dedupe

import (
	"fmt"
	"sync"
	"time"
)

type Cache struct {
	mu            sync.RWMutex
	seen          map[string]time.Time
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
}

func New(retention time.Duration) *Cache {
	c := &Cache{
		seen:      make(map[string]time.Time),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(10 * time.Minute)
	go c.cleanup()

	return c
}

// Seen marks the post and reports whether it had been marked before.
func (c *Cache) Seen(sourceID int64, messageID int) bool {
	key := fmt.Sprintf("%d:%d", sourceID, messageID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = time.Now()
	return false
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.retention)

	for key, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, key)
		}
	}
}

func (c *Cache) Close() {
	c.cleanupTicker.Stop()
	close(c.stopChan)
}

// Len reports how many posts are currently remembered.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}
