package monitor

import (
	"sync"
	"time"
)

// Queue is an unbounded FIFO shared by many producers and one consumer.
// Every item taken with Get must be acknowledged with Done; Join blocks
// until all items put so far have been acknowledged.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	pending int
	drained *sync.Cond
	notify  chan struct{}
	closed  bool
}

func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{notify: make(chan struct{}, 1)}
	q.drained = sync.NewCond(&q.mu)
	return q
}

// Put appends v. It never blocks.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.pending++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Get removes the oldest item, waiting up to timeout for one to arrive. On a
// closed queue it returns immediately once the queue is empty.
func (q *Queue[T]) Get(timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			var zero T
			return zero, false
		}

		select {
		case <-q.notify:
		case <-timer.C:
			var zero T
			return zero, false
		}
	}
}

// Close wakes a blocked Get. Items already queued can still be taken.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Done acknowledges one item returned by Get.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending <= 0 {
		panic("monitor: Queue.Done called more times than items were put")
	}
	q.pending--
	if q.pending == 0 {
		q.drained.Broadcast()
	}
}

// Join blocks until every item put has been acknowledged.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.drained.Wait()
	}
}

// Len returns the number of items waiting to be taken.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
