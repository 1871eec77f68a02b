package engine

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Option configures a [Multi] via [New].
type Option func(*options) error

type options struct {
	logger          *slog.Logger
	maxConcurrent   int64
	readIdleTimeout time.Duration
	keepAlive       time.Duration
	maxIdleConns    int
}

// WithLogger sets the logger used for verbose transfer tracing and
// transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMaxConcurrent caps the number of transfers doing network I/O at the
// same time. Registered handles beyond the cap wait for a free slot.
// Zero means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max concurrent must not be negative")
		}
		o.maxConcurrent = int64(n)
		return nil
	}
}

// WithHealthCheck enables HTTP/2 ping health checks on connections that
// have been idle for the given duration.
func WithHealthCheck(readIdle time.Duration) Option {
	return func(o *options) error {
		if readIdle < 0 {
			return errors.New("health check interval must not be negative")
		}
		o.readIdleTimeout = readIdle
		return nil
	}
}

// WithMaxIdleConns limits idle keep-alive connections per transport.
func WithMaxIdleConns(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max idle conns must not be negative")
		}
		o.maxIdleConns = n
		return nil
	}
}

// Options describe a single transfer. The zero value is a GET with no
// timeouts that does not follow redirects.
type Options struct {
	Method string
	URL    string
	Header http.Header

	// Fields, when non-empty, are sent as a multipart/form-data body and
	// the Read callback is not used.
	Fields []Field

	// Upload marks the request as carrying a body pulled through
	// Callbacks.Read. UploadSize < 0 streams it chunked.
	Upload     bool
	UploadSize int64
	Rewindable bool

	// NoBody skips reading the response body (HEAD, OPTIONS).
	NoBody bool

	Redirections   int
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	TLS   TLSOptions
	Proxy Proxy

	ResumeOffset int64
	UserAgent    string
	Verbose      bool
}

// Field is one multipart form field.
type Field struct {
	Name  string
	Value string
}

// TLSOptions select the TLS configuration of the transport serving a
// handle. Handles with equal TLSOptions and Proxy share a transport.
type TLSOptions struct {
	Verify   bool
	CAPath   string
	CABundle string
	CertFile string
	KeyFile  string

	// PinnedPublicKey holds one or more "sha256//<base64>" hashes of the
	// peer's SubjectPublicKeyInfo, separated by ';'.
	PinnedPublicKey string
}

// Proxy routes the handle through an HTTP(S) or SOCKS5 proxy.
type Proxy struct {
	URL      string
	Username string
	Password string
}
