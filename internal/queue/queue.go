package queue

import (
	"sync"
)

// Coalescing is a thread-safe keyed write queue. Pushing a key that is
// already queued replaces its value in place, so a drain yields one value per
// key in the order keys were first pushed.
type Coalescing[K comparable, V any] struct {
	mu    sync.Mutex
	order []K
	items map[K]V
	total uint64
}

// New creates a new empty queue.
func New[K comparable, V any]() *Coalescing[K, V] {
	return &Coalescing[K, V]{
		items: make(map[K]V),
	}
}

// Push queues v under k, replacing any value already queued for k.
func (q *Coalescing[K, V]) Push(k K, v V) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[k]; !ok {
		q.order = append(q.order, k)
	}
	q.items[k] = v
	q.total++
}

// Get returns the value queued for k.
func (q *Coalescing[K, V]) Get(k K) (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.items[k]
	return v, ok
}

// Empty returns true if the queue has no items.
func (q *Coalescing[K, V]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of distinct keys queued.
func (q *Coalescing[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pushed returns how many pushes the queue has accepted, coalesced or not.
func (q *Coalescing[K, V]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Clear removes all items from the queue.
func (q *Coalescing[K, V]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = nil
	q.items = make(map[K]V)
}

// GetAndEmpty returns all queued values in first-push order and clears the queue.
func (q *Coalescing[K, V]) GetAndEmpty() []V {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]V, 0, len(q.order))
	for _, k := range q.order {
		result = append(result, q.items[k])
	}
	q.order = nil
	q.items = make(map[K]V, len(result))
	return result
}
