package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Callbacks are invoked by [Multi.Perform] on behalf of a registered
// handle. A non-nil error aborts the transfer.
type Callbacks interface {
	// Read fills p with upload data. io.EOF (or 0, nil) ends the body.
	Read(p []byte) (int, error)
	// Seek rewinds the upload for a redirect that replays the body.
	Seek(offset int64, whence int) error
	// Write consumes response body data. Anything short of len(p) aborts.
	Write(p []byte) (int, error)
	// Header receives the status line followed by one line per header.
	Header(line string) error
	// Progress reports transfer counters after each chunk.
	Progress(dlNow, dlTotal, ulNow, ulTotal int64) error
}

// Message reports the completion of a registered handle.
type Message struct {
	Handle *Handle
	Code   Code
	Err    error
}

// Multi multiplexes transfers and hands their callbacks to the goroutine
// calling Perform.
type Multi struct {
	logger     *slog.Logger
	sem        *semaphore.Weighted
	transports *transports

	mu      sync.Mutex
	handles map[*Handle]struct{}
	events  []*event
	msgs    []Message
	closed  bool

	wake chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Multi.
func New(optFns ...Option) (*Multi, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying engine option: %w", err)
		}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	m := &Multi{
		logger:     opts.logger,
		transports: newTransports(opts),
		handles:    make(map[*Handle]struct{}),
		wake:       make(chan struct{}, 1),
	}
	if opts.maxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(opts.maxConcurrent)
	}

	return m, nil
}

// NewHandle prepares a transfer. It fails when the transport for the
// handle's TLS or proxy setup cannot be built.
func (m *Multi) NewHandle(opts Options, cb Callbacks) (*Handle, error) {
	if cb == nil {
		return nil, errors.New("callbacks must not be nil")
	}

	tr, err := m.transports.get(opts.TLS, opts.Proxy)
	if err != nil {
		return nil, err
	}

	if opts.Header == nil {
		opts.Header = make(http.Header)
	}

	h := &Handle{
		multi: m,
		opts:  opts,
		cb:    cb,
	}
	h.client = &http.Client{
		Transport:     tr,
		CheckRedirect: h.checkRedirect,
	}

	return h, nil
}

// Add registers h and starts its transfer.
func (m *Multi) Add(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if h.multi != m {
		return ErrUnknownHandle
	}
	if h.started {
		return ErrHandleActive
	}

	h.started = true
	h.ctx, h.cancel = context.WithCancel(context.Background())
	m.handles[h] = struct{}{}

	m.wg.Go(h.run)

	return nil
}

// Remove unregisters h, aborting its transfer if still running. A removed
// handle never produces a Message.
func (m *Multi) Remove(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handles[h]; !ok {
		return ErrUnknownHandle
	}

	delete(m.handles, h)
	h.cancel()

	return nil
}

// Perform runs the callbacks transfers have posted since the last call and
// reports how many registered transfers are still running.
func (m *Multi) Perform() (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	events := m.events
	m.events = nil
	m.mu.Unlock()

	for _, ev := range events {
		if ev.h.ctx.Err() != nil {
			continue
		}
		if !ev.state.CompareAndSwap(eventQueued, eventTaken) {
			continue
		}
		ev.reply <- ev.fn()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var running int
	for h := range m.handles {
		if !h.finished {
			running++
		}
	}

	return running, nil
}

// InfoRead pops the oldest completion message.
func (m *Multi) InfoRead() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return Message{}, false
	}

	msg := m.msgs[0]
	m.msgs[0] = Message{}
	m.msgs = m.msgs[1:]

	return msg, true
}

// Wait blocks until a transfer posts work for Perform, Wakeup is called,
// the timeout elapses or ctx ends.
func (m *Multi) Wait(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	ready := len(m.events) > 0 || len(m.msgs) > 0
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if ready || timeout <= 0 {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.wake:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Wakeup interrupts a blocked Wait. Safe from any goroutine.
func (m *Multi) Wakeup() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close aborts every registered transfer, waits for their goroutines and
// releases idle connections.
func (m *Multi) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for h := range m.handles {
		h.cancel()
	}
	clear(m.handles)
	m.events = nil
	m.msgs = nil
	m.mu.Unlock()

	m.wg.Wait()
	m.transports.closeIdle()
	m.Wakeup()

	return nil
}

func (m *Multi) post(ev *event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.events = append(m.events, ev)
	m.mu.Unlock()

	m.Wakeup()

	return nil
}

func (m *Multi) complete(h *Handle, err error) {
	m.mu.Lock()
	if _, ok := m.handles[h]; !ok {
		m.mu.Unlock()
		return
	}
	h.finished = true
	m.msgs = append(m.msgs, Message{Handle: h, Code: classify(err), Err: err})
	m.mu.Unlock()

	m.Wakeup()
}

const (
	eventQueued int32 = iota
	eventTaken
	eventAbandoned
)

// event is a callback a transfer goroutine wants run by Perform.
type event struct {
	h     *Handle
	fn    func() error
	reply chan error
	state atomic.Int32
}
