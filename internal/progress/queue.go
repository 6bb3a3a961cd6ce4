package progress

import "sync"

// Queue is the single-producer/single-consumer ordered event queue between
// the worker and the presentation layer. The producer never blocks: events
// accumulate until the consumer's next poll drains them all at once.
// Emission order is preserved; nothing is coalesced.
type Queue struct {
	mu     sync.Mutex
	events []Event
	seq    int64
	closed bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Emit appends an event, stamping its sequence number. Emit on a closed
// queue is a no-op so a late producer cannot wedge shutdown.
func (q *Queue) Emit(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	e.Seq = q.seq
	q.events = append(q.events, e)
}

// Drain returns every pending event in emission order and empties the queue.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	drained := q.events
	q.events = nil
	return drained
}

// Close stops accepting events. Pending events remain drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Pending reports how many events await the consumer.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
