// Package tgcache is a generic gob-encoded, TTL-bounded in-memory cache
// built on freecache, generalized from the teacher's single-purpose file
// metadata cache (internal/cache in the source project) into the backing
// store for both the Channel Resolver's and Capability Prober's caches.
package tgcache

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/coocood/freecache"
)

// Cache is a byte-size-bounded cache with per-entry expiry, safe for
// concurrent use. Each typed cache (resolver, prober) wraps one instance.
type Cache struct {
	inner *freecache.Cache
	mu    sync.RWMutex
}

// New allocates a cache with the given capacity in bytes.
func New(sizeBytes int) *Cache {
	return &Cache{inner: freecache.NewCache(sizeBytes)}
}

// Get decodes the value stored under key into dst. Returns
// freecache.ErrNotFound on a miss or expiry.
func (c *Cache) Get(key string, dst any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := c.inner.Get([]byte(key))
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(dst)
}

// Set stores value under key, expiring after expireSeconds (0 means no
// expiry, which this module never uses — every cache here is TTL-bound).
func (c *Cache) Set(key string, value any, expireSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return err
	}
	return c.inner.Set([]byte(key), buf.Bytes(), expireSeconds)
}

// Delete evicts key, a no-op if absent.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Del([]byte(key))
}
