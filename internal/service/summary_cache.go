package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	summary string
	at      time.Time
}

// summaryCache keeps model output keyed by a hash of the summarized text.
type summaryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

func newSummaryCache(ttl time.Duration) *summaryCache {
	return &summaryCache{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *summaryCache) get(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(text)
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.summary, true
}

func (c *summaryCache) set(text, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(text)] = cacheEntry{summary: summary, at: c.now()}
}
