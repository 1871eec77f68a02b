package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// PerformerOption configures a [Performer].
type PerformerOption func(*Performer)

// WithWaitActivity sets how long the performer waits for activity between
// polls.
func WithWaitActivity(d time.Duration) PerformerOption {
	return func(p *Performer) {
		p.SetWaitActivity(d)
	}
}

// Performer drives a client's poll loop on its own goroutine until Close.
type Performer struct {
	client *Client
	wait   atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPerformer starts a goroutine calling Perform and WaitActivity in a
// loop. A client may have any number of performers.
func NewPerformer(c *Client, opts ...PerformerOption) *Performer {
	p := &Performer{client: c}
	p.wait.Store(int64(c.defaults.WaitActivity))
	for _, opt := range opts {
		opt(p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Go(func() { p.loop(ctx) })

	return p
}

// WaitActivity returns the current poll interval.
func (p *Performer) WaitActivity() time.Duration {
	return time.Duration(p.wait.Load())
}

// SetWaitActivity changes the poll interval; non-positive values restore
// the default.
func (p *Performer) SetWaitActivity(d time.Duration) {
	if d <= 0 {
		d = DefaultWaitActivity
	}
	p.wait.Store(int64(d))
}

// Close stops the loop and waits for it to exit.
func (p *Performer) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Performer) loop(ctx context.Context) {
	for ctx.Err() == nil {
		if err := p.client.Perform(); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			p.client.logger.Error("perform", "error", err)
		}

		if err := p.client.WaitActivityContext(ctx, p.WaitActivity()); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			if ctx.Err() == nil {
				p.client.logger.Error("wait activity", "error", err)
			}
		}
	}
}
