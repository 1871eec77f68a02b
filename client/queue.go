package client

import "sync"

// queue is the FIFO of sent requests waiting to be admitted by Perform.
type queue struct {
	mu     sync.Mutex
	items  []*state
	closed bool
}

// push appends s, reporting false once the queue has been closed.
func (q *queue) push(s *state) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, s)

	return true
}

func (q *queue) pop() (*state, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	s := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	return s, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close refuses further pushes and returns everything still queued.
func (q *queue) close() []*state {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	q.closed = true

	return items
}

func (q *queue) snapshot() []*state {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*state, len(q.items))
	copy(out, q.items)

	return out
}
