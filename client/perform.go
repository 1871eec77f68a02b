package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/adamwoolhether/asynchttp/client/engine"
)

// Perform advances every request by one step. It admits queued requests,
// drives the engine, applies timeouts and reaps finished requests, then
// runs their callbacks on the calling goroutine. Request failures are
// reported on the requests; Perform only fails when the engine does.
//
// Perform may be called from any number of goroutines; calls are
// serialized. Handlers must not call Perform.
func (c *Client) Perform() error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	reaped := c.admit(nil)
	err := c.drive()
	c.sweep(time.Now())
	reaped = c.reap(reaped)
	c.mu.Unlock()

	for _, s := range reaped {
		s.deliver()
	}

	return err
}

// WaitActivity blocks until the engine or the submission queue has work,
// or d elapses.
func (c *Client) WaitActivity(d time.Duration) error {
	return c.WaitActivityContext(context.Background(), d)
}

// WaitActivityContext is WaitActivity bounded by ctx.
func (c *Client) WaitActivityContext(ctx context.Context, d time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	queued := c.queue.len()
	if queued > 0 {
		if c.gate == nil {
			return nil
		}
		d = min(d, c.gate.Delay())
	}

	c.mu.Lock()
	now := time.Now()
	for _, s := range c.active {
		if until := s.deadline().Sub(now); until < d {
			d = max(until, 0)
		}
	}
	c.mu.Unlock()

	if err := c.multi.Wait(ctx, d); err != nil {
		if errors.Is(err, engine.ErrClosed) {
			return ErrClosed
		}
		return err
	}

	return nil
}

func (c *Client) admit(reaped []*state) []*state {
	for c.queue.len() > 0 {
		if c.gate != nil && !c.gate.Allow() {
			break
		}

		s, ok := c.queue.pop()
		if !ok {
			break
		}

		if s.Status() != Pending {
			c.finish(s, false)
			reaped = append(reaped, s)
			continue
		}

		h, err := c.register(s)
		if err != nil {
			c.logger.Warn("request admission failed", "id", s.id, "url", s.cfg.URL, "error", err)
			s.fail(engine.FailedInit, err)
			c.finish(s, false)
			reaped = append(reaped, s)
			continue
		}

		s.touch()
		c.active[h] = s
		c.metrics.admitted(s.ctx)
	}

	return reaped
}

func (c *Client) register(s *state) (*engine.Handle, error) {
	if s.preErr != nil {
		return nil, s.preErr
	}
	if err := check(s.cfg); err != nil {
		return nil, err
	}

	opts, err := c.handleOptions(s)
	if err != nil {
		return nil, err
	}

	h, err := c.multi.NewHandle(opts, callbacks{s: s})
	if err != nil {
		return nil, fmt.Errorf("creating handle: %w", err)
	}
	if err := c.multi.Add(h); err != nil {
		return nil, fmt.Errorf("registering handle: %w", err)
	}

	return h, nil
}

func (c *Client) handleOptions(s *state) (engine.Options, error) {
	cfg := s.cfg

	headers := injectTrace(s.ctx, cfg.Headers.Clone())
	if cfg.Method == MethodPost && !headers.Has("Content-Type") {
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	opts := engine.Options{
		Method:         cfg.Method.String(),
		URL:            cfg.Query.AppendTo(cfg.URL),
		Header:         headers.HTTP(),
		NoBody:         !cfg.Method.hasResponseBody(),
		Redirections:   int(cfg.Redirections),
		ConnectTimeout: clampTimeout(cfg.ConnectionTimeout),
		TLS: engine.TLSOptions{
			Verify:          cfg.Verification,
			CAPath:          cfg.CAPath,
			CABundle:        cfg.CABundle,
			CertFile:        cfg.ClientCertificate.CertFile,
			KeyFile:         cfg.ClientCertificate.KeyFile,
			PinnedPublicKey: cfg.PinnedPublicKey,
		},
		Proxy: engine.Proxy{
			URL:      cfg.Proxy.URL,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		},
		ResumeOffset: cfg.ResumeOffset,
		UserAgent:    c.defaults.UserAgent,
		Verbose:      cfg.Verbose,
	}

	if cfg.RequestTimeout < NoTimeout {
		opts.RequestTimeout = clampTimeout(cfg.RequestTimeout)
	}

	switch {
	case cfg.Method == MethodMultipartForm:
		for k, v := range cfg.Fields.All() {
			opts.Fields = append(opts.Fields, engine.Field{Name: k, Value: v})
		}
	case cfg.Method.hasBody():
		size, err := s.uploadSize()
		if err != nil {
			return engine.Options{}, err
		}
		opts.Upload = true
		opts.UploadSize = size
		_, opts.Rewindable = s.uploader.(io.Seeker)
	}

	return opts, nil
}

func (c *Client) drive() error {
	if _, err := c.multi.Perform(); err != nil {
		return fmt.Errorf("engine perform: %w", err)
	}

	for msg, ok := c.multi.InfoRead(); ok; msg, ok = c.multi.InfoRead() {
		s, found := c.active[msg.Handle]
		if !found {
			continue
		}
		if msg.Code == engine.OK {
			s.succeed(msg.Handle)
		} else {
			s.fail(msg.Code, msg.Err)
		}
	}

	return nil
}

func (c *Client) sweep(now time.Time) {
	for _, s := range c.active {
		s.expire(now)
	}
}

func (c *Client) reap(reaped []*state) []*state {
	for h, s := range c.active {
		if s.Status() == Pending {
			continue
		}
		if err := c.multi.Remove(h); err != nil && !errors.Is(err, engine.ErrUnknownHandle) {
			c.logger.Error("removing handle", "id", s.id, "error", err)
		}
		delete(c.active, h)
		c.finish(s, true)
		reaped = append(reaped, s)
	}

	return reaped
}

// finish closes out telemetry for a request leaving the client.
func (c *Client) finish(s *state, registered bool) {
	s.mu.Lock()
	status := s.status
	var code int
	if s.response != nil {
		code = s.response.StatusCode
	}
	var err error
	if s.err != nil {
		err = s.err
	}
	s.mu.Unlock()

	c.logger.Debug("request finished", "id", s.id, "url", s.cfg.URL, "status", status.String(), "error", err)
	c.metrics.reaped(s.ctx, s.cfg.Method.String(), status, registered, time.Since(s.sent))
	endSpan(s.span, status, code, err)
}
