// Package progress implements reading-progress synchronization: a fast
// local cache consulted before the authoritative store answers, and a
// debounced writer that coalesces bursts of position events into a single
// trailing-edge remote write per document.
package progress

import (
	"context"
	"fmt"
	"sync"
)

// Cache is the fast, synchronous position mirror keyed by user and
// document. Last-write-wins, no versioning. Reads are served before any
// remote fetch completes so resuming never shows the beginning first.
//
// The cache is best effort: a backend failure degrades to a miss, it never
// surfaces to the reader.
type Cache interface {
	Get(ctx context.Context, userID, documentID uint) (marker string, ok bool)
	Set(ctx context.Context, userID, documentID uint, marker string)
}

// MemoryCache is the default in-process cache. Positions survive for the
// lifetime of the server process only; the authoritative store covers
// everything beyond that.
type MemoryCache struct {
	mu      sync.RWMutex
	markers map[string]string
}

// NewMemoryCache creates an empty in-process progress cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{markers: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, userID, documentID uint) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	marker, ok := c.markers[cacheKey(userID, documentID)]
	return marker, ok
}

func (c *MemoryCache) Set(_ context.Context, userID, documentID uint, marker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[cacheKey(userID, documentID)] = marker
}

func cacheKey(userID, documentID uint) string {
	return fmt.Sprintf("%d:%d", userID, documentID)
}
