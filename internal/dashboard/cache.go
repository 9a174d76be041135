package dashboard

import (
	"sync"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/observability"
)

// Cache is a thread-safe LRU of reconciled series keyed by selection.
// A selection includes today's date, so entries roll over at midnight on
// their own; data changes need an explicit Purge.
type Cache struct {
	maxEntries int
	metrics    *observability.Metrics

	mu      sync.Mutex
	entries map[forecast.Selection]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key   forecast.Selection
	value View
	prev  *entry
	next  *entry
}

// NewCache creates a cache holding at most maxEntries selections. metrics may be nil.
func NewCache(maxEntries int, metrics *observability.Metrics) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		maxEntries: maxEntries,
		metrics:    metrics,
		entries:    make(map[forecast.Selection]*entry),
	}
}

// Get returns the cached view for key and marks it most recently used.
func (c *Cache) Get(key forecast.Selection) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.lookup("miss")
		return View{}, false
	}
	c.lookup("hit")
	c.moveToFront(e)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *Cache) Put(key forecast.Selection, value View) {
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
	c.size()
}

// Invalidate drops a single selection.
func (c *Cache) Invalidate(key forecast.Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(e)
		c.size()
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[forecast.Selection]*entry)
	c.head, c.tail = nil, nil
	c.size()
}

// Len reports the number of cached selections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
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

func (c *Cache) remove(e *entry) {
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
	e.prev, e.next = nil, nil
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

func (c *Cache) lookup(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (c *Cache) size() {
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(len(c.entries)))
	}
}
