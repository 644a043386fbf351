package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	plain := cacheKey("roads", "")
	styled := cacheKey("roads", "eJxLS0o=")
	assert.NotEqual(t, plain, styled)
	assert.Equal(t, plain, cacheKey("roads", ""))
}

func TestLayerCache_PutGet(t *testing.T) {
	cache := newLayerCache(4)

	_, ok := cache.get("missing")
	assert.False(t, ok)

	cache.put("a", &stubHandle{name: "a"})
	handle, ok := cache.get("a")
	require.True(t, ok)
	assert.Equal(t, "a", handle.Name())
	assert.Equal(t, 1, cache.len())
}

func TestLayerCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := newLayerCache(2)
	cache.put("a", &stubHandle{name: "a"})
	cache.put("b", &stubHandle{name: "b"})

	// Touch a so b becomes the eviction candidate.
	_, ok := cache.get("a")
	require.True(t, ok)

	cache.put("c", &stubHandle{name: "c"})
	assert.Equal(t, 2, cache.len())

	_, ok = cache.get("b")
	assert.False(t, ok)
	_, ok = cache.get("a")
	assert.True(t, ok)
	_, ok = cache.get("c")
	assert.True(t, ok)
}

func TestLayerCache_Disabled(t *testing.T) {
	cache := newLayerCache(0)
	cache.put("a", &stubHandle{name: "a"})
	assert.Zero(t, cache.len())

	_, ok := cache.get("a")
	assert.False(t, ok)
}

func TestLayerCache_GetByName(t *testing.T) {
	cache := newLayerCache(4)

	_, ok := cache.getByName("roads")
	assert.False(t, ok)

	old := &stubHandle{name: "roads"}
	restyled := &stubHandle{name: "roads"}
	cache.put(cacheKey("roads", ""), old)
	cache.put(cacheKey("roads", "eJxLS0o="), restyled)

	// The most recently used preparation wins.
	handle, ok := cache.getByName("roads")
	require.True(t, ok)
	assert.Same(t, restyled, handle)

	// Prefix matching must not cross layer name boundaries.
	_, ok = cache.getByName("road")
	assert.False(t, ok)
}

func TestLayerCache_Snapshot(t *testing.T) {
	cache := newLayerCache(4)
	cache.put("a", &stubHandle{name: "a"})
	cache.put("b", &stubHandle{name: "b"})
	cache.put("c", &stubHandle{name: "c"})

	// get moves a to the most recently used slot.
	_, _ = cache.get("a")

	snapshot := cache.snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "b", snapshot[0].Name())
	assert.Equal(t, "c", snapshot[1].Name())
	assert.Equal(t, "a", snapshot[2].Name())
}
