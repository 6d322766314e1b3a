// ABOUTME: Thread-safe TTL cache suppressing redelivered webhook updates
// ABOUTME: Size-bounded with O(1) oldest-entry eviction via a linked list

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers recently seen update IDs. The platform retries webhook
// deliveries it considers unacknowledged, so an update can arrive more than
// once; processing it twice would run a duplicate exchange.
type Cache struct {
	mu      sync.Mutex
	seen    map[int64]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache that remembers IDs for ttl, holding at most maxSize
// entries. A background goroutine prunes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[int64]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Seen atomically checks whether id was already recorded within the TTL and
// records it if not. Returns true for a duplicate. The check and the mark are
// one critical section, so two concurrent deliveries of the same update can
// never both pass.
func (c *Cache) Seen(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[id]; ok && time.Since(e.at) < c.ttl {
		return true
	}
	c.mark(id)
	return false
}

func (c *Cache) mark(id int64) {
	now := time.Now()

	if e, ok := c.seen[id]; ok {
		e.at = now
		c.order.MoveToBack(e.elem)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[id] = &entry{at: now, elem: c.order.PushBack(id)}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(int64)
	c.order.Remove(front)
	delete(c.seen, id)
}

// Len reports the number of remembered IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.prune()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.at) > c.ttl {
			c.order.Remove(e.elem)
			delete(c.seen, id)
		}
	}
}

// Close stops the background pruner. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
