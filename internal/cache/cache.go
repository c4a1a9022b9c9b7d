// Package cache provides an in-memory answer cache keyed by normalized
// question text, with LRU eviction and a sliding TTL.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Defaults for a zero Config.
const (
	DefaultMaxSize = 100
	DefaultTTL     = 30 * time.Minute
)

// Entry is a cached answer with its source previews.
type Entry struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is a truncated provenance record attached to a cached answer.
type Source struct {
	Preview   string  `json:"preview"`
	Page      int     `json:"page"`
	Chapter   string  `json:"chapter"`
	Section   string  `json:"section,omitempty"`
	Type      string  `json:"type"`
	BookTitle string  `json:"bookTitle"`
	Score     float64 `json:"score"`
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Size        int   `json:"size"`
	MaxSize     int   `json:"maxSize"`
	ApproxBytes int64 `json:"approxBytes"`
}

// Config tunes a Cache. Zero values fall back to package defaults.
type Config struct {
	MaxSize int
	TTL     time.Duration
}

type item struct {
	key       string
	entry     Entry
	bytes     int64
	expiresAt time.Time
}

// Cache is a bounded LRU with sliding expiry. A Get on a live entry both
// refreshes its TTL and promotes it to most recently used; Has does neither.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // front = most recently used
	items   map[string]*list.Element
	bytes   int64

	// now is swappable in tests to drive expiry deterministically.
	now func() time.Time
}

// New creates a Cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Cache{
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// NormalizeKey canonicalizes a question for cache lookup: lowercase, trimmed,
// with internal whitespace runs collapsed to single spaces. "What is X?" and
// "  what   is x?  " hit the same entry.
func NormalizeKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Get returns the entry for question if present and unexpired. A hit slides
// the entry's expiry forward by the full TTL and marks it most recently used.
func (c *Cache) Get(question string) (Entry, bool) {
	key := NormalizeKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	it := el.Value.(*item)
	if c.now().After(it.expiresAt) {
		c.remove(el)
		return Entry{}, false
	}

	it.expiresAt = c.now().Add(c.ttl)
	c.order.MoveToFront(el)
	return it.entry, true
}

// Set stores an entry for question, evicting the least recently used entry
// when the cache is full. Setting an existing key replaces its entry and
// resets its expiry.
func (c *Cache) Set(question string, entry Entry) {
	key := NormalizeKey(question)
	size := entrySize(key, entry)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		it := el.Value.(*item)
		c.bytes += size - it.bytes
		it.entry = entry
		it.bytes = size
		it.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}

	el := c.order.PushFront(&item{
		key:       key,
		entry:     entry,
		bytes:     size,
		expiresAt: c.now().Add(c.ttl),
	})
	c.items[key] = el
	c.bytes += size
}

// Has reports whether a live entry exists for question. Unlike Get it does
// not slide the TTL or touch recency, so probing is side-effect free apart
// from lazily dropping an expired entry.
func (c *Cache) Has(question string) bool {
	key := NormalizeKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.now().After(el.Value.(*item).expiresAt) {
		c.remove(el)
		return false
	}
	return true
}

// Delete removes the entry for question, reporting whether one existed.
func (c *Cache) Delete(question string) bool {
	key := NormalizeKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Stats returns current occupancy. Expired but not yet collected entries
// still count; they are dropped lazily on access.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:        c.order.Len(),
		MaxSize:     c.maxSize,
		ApproxBytes: c.bytes,
	}
}

// remove must be called with c.mu held.
func (c *Cache) remove(el *list.Element) {
	it := el.Value.(*item)
	c.order.Remove(el)
	delete(c.items, it.key)
	c.bytes -= it.bytes
}

// entrySize estimates the memory footprint of an entry in bytes. String
// lengths only; struct overhead is ignored, hence "approx" in Stats.
func entrySize(key string, e Entry) int64 {
	size := int64(len(key) + len(e.Answer))
	for _, s := range e.Sources {
		size += int64(len(s.Preview) + len(s.Chapter) + len(s.Section) + len(s.Type) + len(s.BookTitle) + 16)
	}
	return size
}
