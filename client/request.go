package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request is the caller's handle on a submitted request. All methods are
// safe for concurrent use.
type Request struct {
	s *state
}

// ID uniquely identifies the request.
func (r *Request) ID() uuid.UUID { return r.s.id }

// URL returns the URL the request was built with, before query params.
func (r *Request) URL() string { return r.s.cfg.URL }

// Method returns the request's method.
func (r *Request) Method() Method { return r.s.cfg.Method }

// Status returns the current status without blocking.
func (r *Request) Status() Status { return r.s.Status() }

// IsDone reports whether the request completed and its response has not
// been taken.
func (r *Request) IsDone() bool { return r.Status() == Done }

// IsPending reports whether the request is still in flight.
func (r *Request) IsPending() bool { return r.Status() == Pending }

// Cancel aborts a pending request and wakes the poll loop so the transfer
// is torn down and its callback delivered promptly. It reports false when
// the request had already left Pending.
func (r *Request) Cancel() bool {
	if !r.s.cancel(nil) {
		return false
	}
	r.s.wake()
	return true
}

// Done returns a channel closed once the request leaves Pending.
func (r *Request) Done() <-chan struct{} { return r.s.done }

// Wait blocks until the request leaves Pending.
func (r *Request) Wait() Status {
	<-r.s.done
	return r.Status()
}

// WaitFor blocks for at most d and returns the status at that point.
func (r *Request) WaitFor(d time.Duration) Status {
	return waitOn(r.s.done, d, r.Status)
}

// WaitUntil blocks until t at the latest.
func (r *Request) WaitUntil(t time.Time) Status {
	return r.WaitFor(time.Until(t))
}

// WaitContext blocks until the request leaves Pending or ctx ends.
func (r *Request) WaitContext(ctx context.Context) (Status, error) {
	select {
	case <-r.s.done:
		return r.Status(), nil
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}

// WaitCallback blocks until the completion callback has returned. It also
// returns when no callback was set, once the request was reaped.
func (r *Request) WaitCallback() Status {
	<-r.s.callbacked
	return r.Status()
}

// WaitCallbackFor is WaitCallback bounded by d.
func (r *Request) WaitCallbackFor(d time.Duration) Status {
	return waitOn(r.s.callbacked, d, r.Status)
}

// WaitCallbackUntil is WaitCallback bounded by t.
func (r *Request) WaitCallbackUntil(t time.Time) Status {
	return r.WaitCallbackFor(time.Until(t))
}

// Take blocks until the request leaves Pending and hands over its
// response. It succeeds once; afterwards the status is Empty.
func (r *Request) Take() (*Response, error) {
	<-r.s.done

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != Done {
		if s.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResponseUnavailable, s.err)
		}
		return nil, fmt.Errorf("%w: status %s", ErrResponseUnavailable, s.status)
	}

	resp := s.response
	s.response = nil
	s.status = Empty

	return resp, nil
}

// Err blocks until the request leaves Pending and returns why it failed,
// or nil when it succeeded.
func (r *Request) Err() error {
	<-r.s.done

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.err == nil {
		return nil
	}
	return r.s.err
}

// CallbackErr blocks until the callback ran and returns its error or
// recovered panic.
func (r *Request) CallbackErr() error {
	<-r.s.callbacked

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.callbackErr
}

// Progress returns the last fraction reported by the progressor. It is 1
// once the request is Done.
func (r *Request) Progress() float64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.progress
}

func waitOn(ch <-chan struct{}, d time.Duration, status func() Status) Status {
	if d <= 0 {
		select {
		case <-ch:
		default:
		}
		return status()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
	}

	return status()
}
