package resolver

import (
	"sync"
	"time"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

type cacheEntry struct {
	segments  []models.Segment
	fetchedAt time.Time
}

// Cache provides a thread-safe, in-memory, time-bounded cache of resolved
// segment lists keyed by video identifier. Entries past their TTL are treated
// as absent and overwritten on the next successful resolution; they are not
// actively evicted. A category-configuration change clears the whole cache,
// since entries do not record which categories were in effect when fetched.
type Cache struct {
	mutex   sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves the cached segment list for a video. A stale entry reports
// absent. The boolean distinguishes a cached-empty result from a miss.
func (c *Cache) Get(videoID string) ([]models.Segment, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, found := c.entries[videoID]
	if !found || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.segments, true
}

// Set stores the segment list for a video with the current timestamp.
// Definitively-empty results are cached too.
func (c *Cache) Set(videoID string, segments []models.Segment) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[videoID] = cacheEntry{segments: segments, fetchedAt: c.now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries currently held, stale ones included.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}
