package search

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCacheSize is the max number of cached queries.
	DefaultCacheSize = 100

	// DefaultCacheTTL is how long a cached answer stays valid.
	DefaultCacheTTL = time.Minute
)

// resultCache is a small FIFO cache of aggregated results keyed by the
// normalized query and intent override. Each entry owns one element of
// order, so expiry and eviction keep the two in step.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // of *resultCacheEntry, oldest at the front
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type resultCacheEntry struct {
	key     string
	results Results
	created time.Time
}

func newResultCache(maxSize int, ttl time.Duration) *resultCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, opts Options) string {
	return strings.ToLower(strings.TrimSpace(query)) + "\x00" + string(opts.Intent) + "\x00" + strconv.Itoa(opts.Limit)
}

func (c *resultCache) get(key string) (Results, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Results{}, false
	}
	entry := el.Value.(*resultCacheEntry)
	if c.now().Sub(entry.created) > c.ttl {
		c.remove(el)
		return Results{}, false
	}
	return entry.results, true
}

func (c *resultCache) put(key string, r Results) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*resultCacheEntry)
		entry.results = r
		entry.created = c.now()
		c.order.MoveToBack(el)
		return
	}
	for c.order.Len() >= c.maxSize {
		c.remove(c.order.Front())
	}
	c.entries[key] = c.order.PushBack(&resultCacheEntry{key: key, results: r, created: c.now()})
}

func (c *resultCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*resultCacheEntry).key)
}

func (c *resultCache) size() (entries, order int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.order.Len()
}

// reset drops every cached answer.
func (c *resultCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}
