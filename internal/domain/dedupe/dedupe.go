// Package dedupe suppresses repeated attendance marks for the same roll
// within a time window.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper remembers when each key was last recorded.
type Deduper interface {
	// SeenAndRecord reports whether key was recorded less than one window
	// before at. When it was not, at becomes the key's latest record.
	SeenAndRecord(ctx context.Context, key string, at time.Time) bool

	// Unrecord forgets key so the next mark is accepted. Used when the mark
	// was admitted but could not be persisted.
	Unrecord(ctx context.Context, key string)

	Window() time.Duration
	Size() int64
}

// node is one entry in the recency list, newest at head.
type node struct {
	key        string
	at         time.Time
	prev, next *node
}

func (n *node) reset() {
	n.key = ""
	n.at = time.Time{}
	n.prev = nil
	n.next = nil
}

// windowDeduper keeps at most maxSize keys (unbounded when maxSize <= 0) and
// evicts the least recently recorded key when full.
type windowDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node
	tail     *node
	window   time.Duration
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewWindowDeduper creates a deduper. With a zero window nothing is ever
// suppressed.
func NewWindowDeduper(opts ...Option) Deduper {
	d := &windowDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

func (d *windowDeduper) SeenAndRecord(_ context.Context, key string, at time.Time) bool {
	if d.window <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		if at.Sub(n.at) < d.window {
			return true
		}
		n.at = at
		d.unlink(n)
		d.pushFront(n)
		return false
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	n := d.nodePool.Get().(*node)
	n.key = key
	n.at = at
	d.pushFront(n)
	d.seen[key] = n
	d.size.Add(1)
	return false
}

func (d *windowDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	d.unlink(n)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

func (d *windowDeduper) Window() time.Duration { return d.window }

func (d *windowDeduper) Size() int64 { return d.size.Load() }

// Must be called with d.mu held.
func (d *windowDeduper) pushFront(n *node) {
	n.prev = nil
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
}

// Must be called with d.mu held.
func (d *windowDeduper) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

// Must be called with d.mu held.
func (d *windowDeduper) evictOldest() {
	victim := d.tail
	if victim == nil {
		return
	}
	delete(d.seen, victim.key)
	d.unlink(victim)
	victim.reset()
	d.nodePool.Put(victim)
	d.size.Add(-1)
}
