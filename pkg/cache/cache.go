package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is an in-memory TTL cache with LRU eviction, safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // MRU at front, LRU at back
	maxItems int        // 0 = unlimited
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type entry struct {
	key string
	val any
	exp time.Time // zero = no expiry
}

// New creates a cache. ttl<=0 disables expiry and maxItems<=0 disables the
// size bound. A janitor goroutine sweeps expired entries until Stop.
func New(ttl time.Duration, maxItems int) *Cache {
	if maxItems < 0 {
		maxItems = 0
	}
	c := &Cache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	if ttl > 0 {
		go c.janitor(ttl)
	}
	return c
}

// Get returns the value and whether it exists and has not expired.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.removeNoLock(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.val, true
}

// Set stores v under key using the cache TTL.
func (c *Cache) Set(key string, v any) {
	if c == nil {
		return
	}
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.val, e.exp = v, exp
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry{key: key, val: v, exp: exp})
	for c.maxItems > 0 && c.order.Len() > c.maxItems {
		c.removeNoLock(c.order.Back())
	}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.removeNoLock(el)
	}
	c.mu.Unlock()
}

// Len reports the number of entries, expired ones included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stop ends the janitor goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.items {
		if e := el.Value.(*entry); !e.exp.IsZero() && now.After(e.exp) {
			c.removeNoLock(el)
		}
	}
}

// removeNoLock removes el from map and list; caller must hold c.mu.
func (c *Cache) removeNoLock(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
