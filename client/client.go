package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/asynchttp/client/engine"
	"github.com/adamwoolhether/asynchttp/client/throttle"
)

// Client owns a transfer engine, the queue of sent requests and the set
// of requests registered with the engine. It is safe for concurrent use.
type Client struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics
	defaults  Defaults
	gate      *throttle.Gate
	multi     *engine.Multi
	ownsMulti bool
	queue     queue
	closed    atomic.Bool

	// mu is the engine lock: it serializes Perform and guards active.
	mu     sync.Mutex
	active map[*engine.Handle]*state
}

// Build constructs a Client.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	c := &Client{
		logger: slog.Default(),
		active: make(map[*engine.Handle]*state),
	}

	if opts.logger != nil {
		c.logger = opts.logger
	}

	if opts.defaults != nil {
		c.defaults = *opts.defaults
	} else {
		c.defaults.ApplyDefaults()
	}
	if opts.userAgent != "" {
		c.defaults.UserAgent = opts.userAgent
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	c.tracer = tp.Tracer(instrumentationName)

	mp := opts.meterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	m, err := newMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}
	c.metrics = m

	rps, burst := opts.rps, opts.burst
	if rps == 0 && c.defaults.Throttle.RPS > 0 {
		rps, burst = c.defaults.Throttle.RPS, c.defaults.Throttle.Burst
	}
	if rps > 0 {
		g, err := throttle.New(rps, burst, c.logger)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		c.gate = g
	}

	c.multi = opts.multi
	if c.multi == nil {
		c.multi, err = engine.New(
			engine.WithLogger(c.logger),
			engine.WithMaxConcurrent(c.defaults.MaxConcurrent),
		)
		if err != nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}
		c.ownsMulti = true
	}

	return c, nil
}

// Defaults returns the values new builders start from.
func (c *Client) Defaults() Defaults {
	return c.defaults
}

func (c *Client) submit(s *state) *Request {
	if !c.queue.push(s) {
		s.cancel(ErrClosed)
		c.finish(s, false)
		s.deliver()
		return s.req
	}

	c.multi.Wakeup()

	return s.req
}

// CancelAllPending cancels every queued or registered request still
// pending and reports how many it cancelled.
func (c *Client) CancelAllPending() int {
	var n int
	for _, s := range c.states() {
		if s.cancel(nil) {
			n++
		}
	}
	if n > 0 {
		c.multi.Wakeup()
	}
	return n
}

// PendingRequests lists the requests still pending.
func (c *Client) PendingRequests() []*Request {
	var reqs []*Request
	for _, s := range c.states() {
		if s.Status() == Pending {
			reqs = append(reqs, s.req)
		}
	}
	return reqs
}

func (c *Client) states() []*state {
	// admit pops under mu, so both sets are read under it to avoid
	// missing a request in transit between them.
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*state, 0, len(c.active))
	for _, s := range c.active {
		out = append(out, s)
	}

	return append(out, c.queue.snapshot()...)
}

// Close cancels everything pending, delivers outstanding callbacks and
// shuts the engine down if the client created it. Requests sent after
// Close are cancelled immediately.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	var reaped []*state
	for _, s := range c.queue.close() {
		s.cancel(ErrClosed)
		c.finish(s, false)
		reaped = append(reaped, s)
	}
	for h, s := range c.active {
		s.cancel(ErrClosed)
		if err := c.multi.Remove(h); err != nil && !errors.Is(err, engine.ErrUnknownHandle) {
			c.logger.Error("removing handle", "id", s.id, "error", err)
		}
		delete(c.active, h)
		c.finish(s, true)
		reaped = append(reaped, s)
	}
	c.mu.Unlock()

	for _, s := range reaped {
		s.deliver()
	}

	if c.ownsMulti {
		if err := c.multi.Close(); err != nil {
			return fmt.Errorf("closing engine: %w", err)
		}
	}

	return nil
}
