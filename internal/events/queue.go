package events

import (
	"container/heap"
	"errors"
)

// ErrQueueFull is returned when an event is refused admission.
var ErrQueueFull = errors.New("event queue full")

// Queue is a bounded priority queue of pending events. Pop order is
// (timestamp asc, priority desc, insertion seq asc): time drives the
// simulation forward, priority breaks ties at the same minute.
//
// The queue is owned by the single-threaded simulation loop and is not
// synchronized.
type Queue struct {
	h        eventHeap
	capacity int
	seq      uint64
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Len returns the number of pending events.
func (q *Queue) Len() int { return len(q.h) }

// Push admits an event, applying the overflow policy when full: the new
// event must be strictly better by (priority, -timestamp) than the worst
// non-system event present, which is then evicted. System events are never
// evicted; a full queue with nothing evictable refuses admission.
func (q *Queue) Push(e *Event) error {
	if len(q.h) < q.capacity {
		q.admit(e)
		return nil
	}

	worst := q.worstEvictable()
	if worst < 0 {
		return ErrQueueFull
	}
	w := q.h[worst]
	if !e.Kind.System() && !strictlyBetter(e, w) {
		return ErrQueueFull
	}
	heap.Remove(&q.h, worst)
	q.admit(e)
	return nil
}

// Pop removes and returns the next event, or nil when empty.
func (q *Queue) Pop() *Event {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Event)
}

// Peek returns the next event without removing it, or nil when empty.
func (q *Queue) Peek() *Event {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// PeekTS returns the timestamp of the next event.
func (q *Queue) PeekTS() (float64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].Timestamp, true
}

func (q *Queue) admit(e *Event) {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.h, e)
}

// worstEvictable scans for the non-system event with the lowest priority,
// breaking ties toward the latest timestamp. Returns -1 when the queue holds
// only system events.
func (q *Queue) worstEvictable() int {
	worst := -1
	for i, e := range q.h {
		if e.Kind.System() {
			continue
		}
		if worst < 0 {
			worst = i
			continue
		}
		w := q.h[worst]
		if e.Priority < w.Priority ||
			(e.Priority == w.Priority && e.Timestamp > w.Timestamp) {
			worst = i
		}
	}
	return worst
}

// strictlyBetter reports whether a beats b on (priority, -timestamp).
func strictlyBetter(a, b *Event) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Timestamp < b.Timestamp
}

// eventHeap implements heap.Interface over pending events.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
