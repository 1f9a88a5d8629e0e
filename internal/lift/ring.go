package lift

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring evicts the
// oldest element.
type Ring[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	size     int
}

// NewRing creates a ring with the given capacity. A capacity below 1 falls
// back to 10.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 10
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v. When the ring is full the oldest element is evicted and
// returned with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.size == r.capacity {
		old = r.items[r.head]
		evicted = true
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
	return old, evicted
}

// Previous returns the element n steps back from the most recent.
// Previous(1) is the newest element.
func (r *Ring[T]) Previous(n int) (T, bool) {
	var zero T
	if n < 1 || n > r.size {
		return zero, false
	}
	idx := (r.head - n + r.capacity) % r.capacity
	return r.items[idx], true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the maximum number of elements.
func (r *Ring[T]) Cap() int { return r.capacity }

// Clear removes all elements.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}

// Values returns the stored elements from oldest to newest.
func (r *Ring[T]) Values() []T {
	if r.size == 0 {
		return nil
	}
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		idx := (r.head - r.size + i + r.capacity) % r.capacity
		out[i] = r.items[idx]
	}
	return out
}
