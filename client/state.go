package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp/client/engine"
	"github.com/adamwoolhether/asynchttp/client/stream"
)

const (
	msgTimeout   = "operation timeout"
	msgAborted   = "callback aborted"
	msgCancelled = "operation cancelled"
	msgUnknown   = "unknown error"
	msgPinned    = "pinned public key mismatch"
	msgNoStatus  = "no http status code received"
)

var (
	errResponseTimeout = errors.New("no activity within response timeout")
	errNotPending      = errors.New("request no longer pending")
)

// state is the shared record behind a Request. The poll loop owns the
// handler fields; everything under mu may be read from any goroutine.
type state struct {
	id     uuid.UUID
	req    *Request
	cfg    RequestConfig
	preErr error

	uploader   stream.Uploader
	downloader stream.Downloader
	progressor stream.Progressor
	buffer     *stream.BufferDownloader

	ctx       context.Context
	span      trace.Span
	sent      time.Time
	wake      func()
	deliverer sync.Once

	mu           sync.Mutex
	status       Status
	err          *Error
	response     *Response
	headers      Headers
	progress     float64
	lastActivity time.Time
	callbackErr  error
	done         chan struct{}
	callbacked   chan struct{}
}

func newState(c *Client, cfg RequestConfig, preErr error) *state {
	s := &state{
		id:         uuid.New(),
		cfg:        cfg,
		preErr:     preErr,
		uploader:   cfg.Uploader,
		downloader: cfg.Downloader,
		progressor: cfg.Progressor,
		sent:       time.Now(),
		wake:       c.multi.Wakeup,
		done:       make(chan struct{}),
		callbacked: make(chan struct{}),
	}
	s.req = &Request{s: s}
	s.lastActivity = s.sent

	if s.uploader == nil {
		s.uploader = stream.NewBufferUploader(cfg.Content)
	}
	if s.downloader == nil {
		s.buffer = stream.NewBufferDownloader()
		s.downloader = s.buffer
	}
	if s.progressor == nil {
		s.progressor = stream.DefaultProgressor{}
	}
	s.cfg.Uploader, s.cfg.Downloader, s.cfg.Progressor = nil, nil, nil
	s.cfg.Content = nil

	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	s.ctx, s.span = startSpan(c.tracer, parent, s.id.String(), cfg.Method.String(), cfg.URL)

	return s
}

func (s *state) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// settle moves a pending state to a terminal status. Callers hold mu and
// have checked status == Pending.
func (s *state) settle(status Status, e *Error) {
	s.status = status
	s.err = e
	close(s.done)
}

// succeed completes the transfer, materializing the response.
func (s *state) succeed(h *engine.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != Pending {
		return false
	}

	code := h.StatusCode()
	if code == 0 {
		s.settle(Failed, &Error{Status: Failed, Code: engine.RecvError, Message: msgNoStatus})
		return true
	}

	resp := &Response{
		StatusCode: code,
		URL:        h.EffectiveURL(),
		Headers:    s.headers,
		Uploader:   s.uploader,
		Downloader: s.downloader,
		Progressor: s.progressor,
	}
	if s.buffer != nil {
		resp.Content = s.buffer.Take()
	}
	s.headers = Headers{}
	s.progress = 1
	s.response = resp
	s.settle(Done, nil)

	return true
}

// fail records an engine failure code.
func (s *state) fail(code engine.Code, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != Pending {
		return false
	}

	e := &Error{Code: code, Err: err}
	switch code {
	case engine.OperationTimedOut:
		e.Status, e.Message = Timeout, msgTimeout
	case engine.ReadError, engine.WriteError, engine.AbortedByCallback:
		e.Status, e.Message = Cancelled, msgAborted
	case engine.PinnedPubKeyNotMatch:
		e.Status, e.Message = Failed, msgPinned
	default:
		e.Status, e.Message = Failed, msgUnknown
		if err != nil && err.Error() != "" {
			e.Message = err.Error()
		}
	}
	s.settle(e.Status, e)

	return true
}

// cancel moves a pending state to Cancelled.
func (s *state) cancel(cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != Pending {
		return false
	}

	if cause == nil {
		cause = ErrCancelled
	}
	s.settle(Cancelled, &Error{Status: Cancelled, Message: msgCancelled, Err: cause})

	return true
}

// expire applies the activity timeout and the request context.
func (s *state) expire(now time.Time) {
	s.mu.Lock()
	pending := s.status == Pending
	idle := now.Sub(s.lastActivity)
	s.mu.Unlock()

	if !pending {
		return
	}

	if idle >= clampTimeout(s.cfg.ResponseTimeout) {
		s.fail(engine.OperationTimedOut, errResponseTimeout)
		return
	}

	if ctx := s.cfg.Context; ctx != nil {
		switch err := ctx.Err(); {
		case errors.Is(err, context.DeadlineExceeded):
			s.fail(engine.OperationTimedOut, err)
		case err != nil:
			s.cancel(err)
		}
	}
}

// deadline reports when the activity timeout fires.
func (s *state) deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity.Add(clampTimeout(s.cfg.ResponseTimeout))
}

// touch records I/O activity and reports whether the state is pending.
func (s *state) touch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	return s.status == Pending
}

func (s *state) header(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasPrefix(line, "HTTP/") {
		s.headers.Reset()
		return
	}

	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	s.headers.Set(strings.TrimSpace(key), strings.TrimSpace(value))
}

func (s *state) setProgress(p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = min(max(p, 0), 1)
}

// deliver invokes the completion callback, at most once.
func (s *state) deliver() {
	s.deliverer.Do(func() {
		defer close(s.callbacked)

		if s.cfg.Callback == nil {
			return
		}

		err := protect(func() error { return s.cfg.Callback(s.req) })

		s.mu.Lock()
		s.callbackErr = err
		s.mu.Unlock()
	})
}

// protect runs fn, converting a panic into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()

	return fn()
}

// callbacks binds a state to the engine. User handlers only ever run
// through here.
type callbacks struct {
	s *state
}

func (c callbacks) Read(p []byte) (n int, err error) {
	if !c.s.touch() {
		return 0, errNotPending
	}
	err = protect(func() error {
		var rerr error
		n, rerr = c.s.uploader.Read(p)
		return rerr
	})
	return n, err
}

func (c callbacks) Seek(offset int64, whence int) error {
	if !c.s.touch() {
		return errNotPending
	}
	seeker, ok := c.s.uploader.(io.Seeker)
	if !ok {
		return stream.ErrUnsupportedSeek
	}
	return protect(func() error {
		_, err := seeker.Seek(offset, whence)
		return err
	})
}

func (c callbacks) Write(p []byte) (n int, err error) {
	if !c.s.touch() {
		return 0, errNotPending
	}
	err = protect(func() error {
		var werr error
		n, werr = c.s.downloader.Write(p)
		return werr
	})
	return n, err
}

func (c callbacks) Header(line string) error {
	if !c.s.touch() {
		return errNotPending
	}
	c.s.header(line)
	return nil
}

func (c callbacks) Progress(dlNow, dlTotal, ulNow, ulTotal int64) error {
	if !c.s.touch() {
		return errNotPending
	}
	return protect(func() error {
		c.s.setProgress(c.s.progressor.Update(dlNow, dlTotal, ulNow, ulTotal))
		return nil
	})
}

func (s *state) uploadSize() (size int64, err error) {
	err = protect(func() error {
		size = s.uploader.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("uploader size: %w", err)
	}
	return size, nil
}
