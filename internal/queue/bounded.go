// Package queue implements the bounded hand-offs between pipeline stages
// (spec.md §4.3 "All inter-stage hand-offs use bounded blocking queues")
// plus the two queues the bridge itself drains: the first-run Ready Queue,
// which needs a peek at the leading run length, and the structural-ready
// side channel.
//
// Backpressure is the sole flow-control mechanism (spec.md §5): a bounded
// Go channel is the corpus's own idiom for this (see the mutation channel
// in the teacher's cmd/bd/daemon_event_loop.go and internal/eventbus), so
// Bounded wraps one directly rather than reimplementing a queue type.
package queue

// Bounded is a fixed-capacity FIFO hand-off between two goroutines.
type Bounded[T any] struct {
	ch chan T
}

// NewBounded creates a queue of the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{ch: make(chan T, capacity)}
}

// TryPush attempts a non-blocking send; ok is false if the queue is full.
func (b *Bounded[T]) TryPush(v T) (ok bool) {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Push blocks until there is room.
func (b *Bounded[T]) Push(v T) {
	b.ch <- v
}

// TryPop attempts a non-blocking receive.
func (b *Bounded[T]) TryPop() (v T, ok bool) {
	select {
	case v, ok = <-b.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Pop blocks until an item is available or the queue is closed.
func (b *Bounded[T]) Pop() (v T, ok bool) {
	v, ok = <-b.ch
	return v, ok
}

// Len reports the number of items currently buffered (a snapshot; only
// meaningful as a hint, per Go channel semantics).
func (b *Bounded[T]) Len() int {
	return len(b.ch)
}

// Full reports whether the queue is currently at capacity. The parser
// stage uses this to detect "downstream has no room" and skip its LLM
// call (spec.md §4.3 backpressure).
func (b *Bounded[T]) Full() bool {
	return len(b.ch) == cap(b.ch)
}

// Close signals no more items will be pushed; draining goroutines should
// range over Pop until ok is false (spec.md §4.3 "cancellable by closing
// their input queue; must drain gracefully").
func (b *Bounded[T]) Close() {
	close(b.ch)
}
