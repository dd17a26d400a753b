package regional

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// CachedMasker wraps a Masker with an in-memory LRU cache keyed by region,
// grid and mode. Temperature, precipitation and wind share the ERA5 grid,
// so one regions run computes each mask once.
type CachedMasker struct {
	inner Masker
	cache *lruCache
}

// NewCachedMasker creates a cache decorator around a masker.
func NewCachedMasker(inner Masker, maxEntries int) *CachedMasker {
	return &CachedMasker{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

// Mask implements Masker.
func (c *CachedMasker) Mask(region domain.Region, grid domain.Grid, mode MaskMode) (Mask, error) {
	key := fmt.Sprintf("%s|%s|%x", region.ID, mode, gridKey(grid))
	if m, ok := c.cache.get(key); ok {
		return m, nil
	}
	m, err := c.inner.Mask(region, grid, mode)
	if err != nil {
		return m, err
	}
	c.cache.put(key, m)
	return m, nil
}

func gridKey(g domain.Grid) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, axis := range [][]float64{g.Lat, {math.NaN()}, g.Lon} {
		for _, v := range axis {
			bits := math.Float64bits(math.Round(v*1e6) / 1e6)
			for k := range buf {
				buf[k] = byte(bits >> (8 * k))
			}
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// lruCache is a simple thread-safe LRU cache for masks.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Mask
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (Mask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Mask{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Mask) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
