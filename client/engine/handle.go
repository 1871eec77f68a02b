package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"slices"
	"strconv"
	"sync"
)

const chunkSize = 32 * 1024

// Handle is a single transfer registered with a [Multi].
type Handle struct {
	multi  *Multi
	opts   Options
	cb     Callbacks
	client *http.Client

	// guarded by multi.mu
	started  bool
	finished bool
	ctx      context.Context
	cancel   context.CancelFunc

	// xferCtx is owned by the transfer goroutine.
	xferCtx context.Context

	mu           sync.Mutex
	statusCode   int
	effectiveURL string

	dlNow, dlTotal int64
	ulNow, ulTotal int64
}

// StatusCode reports the last HTTP status code received, or 0.
func (h *Handle) StatusCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusCode
}

// EffectiveURL reports the URL of the last request made, after redirects.
func (h *Handle) EffectiveURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.effectiveURL == "" {
		return h.opts.URL
	}
	return h.effectiveURL
}

func (h *Handle) run() {
	h.multi.complete(h, h.transfer())
}

func (h *Handle) transfer() error {
	ctx := h.ctx

	if sem := h.multi.sem; sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)
	}

	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}
	ctx = withConnectTimeout(ctx, h.opts.ConnectTimeout)
	if h.opts.Verbose {
		ctx = httptrace.WithClientTrace(ctx, h.trace())
	}
	h.xferCtx = ctx

	req, err := h.newRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return h.timeoutAware(err)
	}
	defer resp.Body.Close()

	h.mu.Lock()
	h.statusCode = resp.StatusCode
	h.effectiveURL = resp.Request.URL.String()
	h.mu.Unlock()

	if h.opts.Verbose {
		h.multi.logger.Debug("response received", "url", h.opts.URL, "proto", resp.Proto, "status", resp.StatusCode)
	}

	h.dlTotal = max(resp.ContentLength, 0)
	if err := h.headers(resp); err != nil {
		return err
	}

	if h.opts.NoBody {
		return nil
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if err := h.write(buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return h.timeoutAware(rerr)
		}
	}
}

// timeoutAware attributes errors caused by the request deadline to it,
// whatever shape the transport gave them.
func (h *Handle) timeoutAware(err error) error {
	if h.xferCtx != nil && h.xferCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (h *Handle) newRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(h.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	switch {
	case u.Scheme == "" || u.Host == "":
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, h.opts.URL)
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	method := h.opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	req.Header = h.opts.Header.Clone()

	switch {
	case len(h.opts.Fields) > 0:
		body, contentType, err := multipartBody(h.opts.Fields)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.Header.Set("Content-Type", contentType)
		h.ulTotal = int64(len(body))

	case h.opts.Upload && h.opts.UploadSize == 0:
		req.Body = http.NoBody
		req.ContentLength = 0

	case h.opts.Upload:
		req.Body = io.NopCloser(&uploadReader{h: h, size: h.opts.UploadSize})
		req.ContentLength = h.opts.UploadSize
		if h.opts.UploadSize < 0 {
			req.ContentLength = -1
		}
		h.ulTotal = max(h.opts.UploadSize, 0)
		if h.opts.Rewindable {
			req.GetBody = h.rewind
		}
	}

	if h.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.opts.UserAgent)
	}
	if h.opts.ResumeOffset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(h.opts.ResumeOffset, 10)+"-")
	}

	return req, nil
}

func (h *Handle) rewind() (io.ReadCloser, error) {
	var serr error
	if err := h.call(func() error {
		serr = h.cb.Seek(0, io.SeekStart)
		return nil
	}); err != nil {
		return nil, err
	}
	if serr != nil {
		return nil, fmt.Errorf("%w: seek: %w", ErrReadAborted, serr)
	}

	h.ulNow = 0

	return io.NopCloser(&uploadReader{h: h, size: h.opts.UploadSize}), nil
}

func (h *Handle) checkRedirect(_ *http.Request, via []*http.Request) error {
	if h.opts.Redirections <= 0 {
		return http.ErrUseLastResponse
	}
	if len(via) > h.opts.Redirections {
		return fmt.Errorf("%w: %d", ErrTooManyRedirects, h.opts.Redirections)
	}
	return nil
}

// headers hands the status line and headers to the Header callback in a
// single round trip.
func (h *Handle) headers(resp *http.Response) error {
	lines := make([]string, 0, len(resp.Header)+1)
	lines = append(lines, resp.Proto+" "+resp.Status)
	for _, k := range slices.Sorted(maps.Keys(resp.Header)) {
		for _, v := range resp.Header[k] {
			lines = append(lines, k+": "+v)
		}
	}

	return h.call(func() error {
		for _, line := range lines {
			if err := h.cb.Header(line); err != nil {
				return fmt.Errorf("%w: header: %w", ErrWriteAborted, err)
			}
		}
		return h.progress()
	})
}

func (h *Handle) write(p []byte) error {
	h.dlNow += int64(len(p))

	return h.call(func() error {
		n, err := h.cb.Write(p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteAborted, err)
		}
		if n != len(p) {
			return fmt.Errorf("%w: short write %d/%d", ErrWriteAborted, n, len(p))
		}
		return h.progress()
	})
}

func (h *Handle) progress() error {
	if err := h.cb.Progress(h.dlNow, h.dlTotal, h.ulNow, h.ulTotal); err != nil {
		return fmt.Errorf("%w: %w", ErrProgressAborted, err)
	}
	return nil
}

// call runs fn on the goroutine driving Perform and waits for its result.
func (h *Handle) call(fn func() error) error {
	ctx := h.xferCtx
	if ctx == nil {
		ctx = h.ctx
	}

	ev := &event{h: h, fn: fn, reply: make(chan error, 1)}
	if err := h.multi.post(ev); err != nil {
		return err
	}

	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		if ev.state.CompareAndSwap(eventQueued, eventAbandoned) {
			return ctx.Err()
		}
		// Perform already took the event and is running fn.
		return <-ev.reply
	}
}

func (h *Handle) trace() *httptrace.ClientTrace {
	log := h.multi.logger.With("url", h.opts.URL)

	return &httptrace.ClientTrace{
		DNSDone: func(info httptrace.DNSDoneInfo) {
			log.Debug("dns resolved", "addrs", fmt.Sprint(info.Addrs), "error", info.Err)
		},
		ConnectDone: func(network, addr string, err error) {
			log.Debug("connected", "network", network, "addr", addr, "error", err)
		},
		TLSHandshakeDone: func(cs tls.ConnectionState, err error) {
			log.Debug("tls handshake", "version", cs.Version, "server_name", cs.ServerName, "error", err)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			log.Debug("got conn", "reused", info.Reused, "idle", info.WasIdle)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			log.Debug("request written", "error", info.Err)
		},
	}
}

// uploadReader pulls the request body through the Read callback.
type uploadReader struct {
	h    *Handle
	size int64
	sent int64
}

func (r *uploadReader) Read(p []byte) (int, error) {
	if r.size >= 0 {
		remaining := r.size - r.sent
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}

	var (
		n    int
		rerr error
	)
	err := r.h.call(func() error {
		n, rerr = r.h.cb.Read(p)
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("%w: %w", ErrReadAborted, rerr)
		}
		r.h.ulNow += int64(n)
		return r.h.progress()
	})
	if err != nil {
		return 0, err
	}

	r.sent += int64(n)
	if n == 0 {
		return 0, io.EOF
	}

	return n, rerr
}

func multipartBody(fields []Field) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("writing form field %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
