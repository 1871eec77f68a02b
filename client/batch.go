package client

import (
	"errors"
	"fmt"
	"sync"
)

// Batch tracks a group of requests so they can be awaited or cancelled
// together.
type Batch struct {
	mu   sync.Mutex
	reqs []*Request
}

// Send submits b and adds the request to the batch.
func (bt *Batch) Send(b *Builder) *Request {
	req := b.Send()
	bt.Add(req)
	return req
}

// Add tracks an already sent request.
func (bt *Batch) Add(reqs ...*Request) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.reqs = append(bt.reqs, reqs...)
}

// Requests returns the tracked requests in the order added.
func (bt *Batch) Requests() []*Request {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	out := make([]*Request, len(bt.reqs))
	copy(out, bt.reqs)
	return out
}

// Wait blocks until every request leaves Pending and joins the errors of
// those that did not complete.
func (bt *Batch) Wait() error {
	var errs []error
	for _, r := range bt.Requests() {
		if err := r.Err(); err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", r.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Cancel cancels every pending request and reports how many it cancelled.
func (bt *Batch) Cancel() int {
	var n int
	for _, r := range bt.Requests() {
		if r.Cancel() {
			n++
		}
	}
	return n
}
