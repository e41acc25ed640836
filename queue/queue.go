// Package queue implements the per-track event ring buffer shared between
// the control path (single producer) and the render path (single consumer).
package queue

import (
	"fmt"
	"sync/atomic"

	"go-seqengine/event"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 1024

// Queue is a lock-free single-producer/single-consumer ring of events.
//
// Cursors are free-running uint32 counters; the slot for a cursor is
// cursor & mask. Add is producer-only. Peek, RemoveTop and Clear are
// consumer-only. ClearAfter belongs to the producer (it moves the write
// cursor). Count and AvailableCount may be read from anywhere.
type Queue struct {
	read   atomic.Uint32
	write  atomic.Uint32
	mask   uint32
	events []event.Event
}

// New allocates a queue. capacity must be a power of two.
func New(capacity int) *Queue {
	if !IsPowerOfTwo(capacity) || capacity > 1<<31 {
		panic(fmt.Sprintf("queue: capacity %d is not a power of two", capacity))
	}
	return &Queue{
		mask:   uint32(capacity - 1),
		events: make([]event.Event, capacity),
	}
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Capacity returns the number of slots.
func (q *Queue) Capacity() int {
	return int(q.mask) + 1
}

// count is the number of unread events for a cursor pair. A write cursor
// behind the read cursor reads as empty.
func (q *Queue) count(r, w uint32) uint32 {
	n := w - r
	if n > q.mask+1 {
		return 0
	}
	return n
}

// Add appends as many events as fit and returns how many were stored.
// Unread events are never overwritten; the rest of the batch is dropped.
func (q *Queue) Add(events []event.Event) int {
	if len(events) == 0 {
		return 0
	}
	r := q.read.Load()
	w := q.write.Load()
	if w-r > q.mask+1 {
		// a ClearAfter raced the consumer past the new write cursor
		w = r
	}

	free := q.mask + 1 - (w - r)
	n := uint32(len(events))
	if uint64(len(events)) > uint64(free) {
		n = free
	}
	for i := uint32(0); i < n; i++ {
		q.events[(w+i)&q.mask] = events[i]
	}
	q.write.Store(w + n)
	return int(n)
}

// Peek returns the oldest unread event without removing it.
func (q *Queue) Peek() (event.Event, bool) {
	r := q.read.Load()
	if q.count(r, q.write.Load()) == 0 {
		return event.Event{}, false
	}
	return q.events[r&q.mask], true
}

// RemoveTop discards the oldest unread event. It returns false when empty.
func (q *Queue) RemoveTop() bool {
	r := q.read.Load()
	if q.count(r, q.write.Load()) == 0 {
		return false
	}
	q.read.Store(r + 1)
	return true
}

// Clear discards every unread event.
func (q *Queue) Clear() {
	q.read.Store(q.write.Load())
}

// ClearAfter discards the first unread event whose frame is at or after
// cutoff and everything queued behind it. Earlier events are kept in place.
func (q *Queue) ClearAfter(cutoff event.Frame) {
	r := q.read.Load()
	w := q.write.Load()
	n := q.count(r, w)
	for i := uint32(0); i < n; i++ {
		if q.events[(r+i)&q.mask].Frame >= cutoff {
			q.write.Store(r + i)
			return
		}
	}
}

// Count returns the number of unread events.
func (q *Queue) Count() int {
	return int(q.count(q.read.Load(), q.write.Load()))
}

// AvailableCount returns the number of free slots.
func (q *Queue) AvailableCount() int {
	return q.Capacity() - q.Count()
}
