package engine

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/ternarybob/atlas/internal/interfaces"
)

// layerCache keeps prepared layer handles for reuse across jobs. Entries
// are keyed by layer name plus a style checksum, so a layer submitted
// with a changed style is prepared again instead of served stale. One
// worker process owns one cache; the mutex covers engines shared by
// tests.
type layerCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]interfaces.LayerHandle
	order   []string // least recently used first
}

func newLayerCache(max int) *layerCache {
	if max < 0 {
		max = 0
	}
	return &layerCache{
		max:     max,
		entries: make(map[string]interfaces.LayerHandle),
	}
}

// cacheKey combines the layer name with a checksum of its encoded style.
func cacheKey(name, style string) string {
	h := fnv.New64a()
	h.Write([]byte(style))
	return name + "\x00" + strconv.FormatUint(h.Sum64(), 16)
}

func (c *layerCache) get(key string) (interfaces.LayerHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.entries[key]
	if ok {
		c.touch(key)
	}
	return handle, ok
}

func (c *layerCache) put(key string, handle interfaces.LayerHandle) {
	if c.max == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = handle
		c.touch(key)
		return
	}
	for len(c.entries) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = handle
	c.order = append(c.order, key)
}

// getByName finds a prepared layer by bare name, regardless of style.
// The most recently used match wins.
func (c *layerCache) getByName(name string) (interfaces.LayerHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := name + "\x00"
	for i := len(c.order) - 1; i >= 0; i-- {
		if strings.HasPrefix(c.order[i], prefix) {
			return c.entries[c.order[i]], true
		}
	}
	return nil, false
}

// snapshot returns the prepared handles, least recently used first.
func (c *layerCache) snapshot() []interfaces.LayerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interfaces.LayerHandle, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

func (c *layerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// touch moves key to the most recently used position. Caller holds mu.
func (c *layerCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}
