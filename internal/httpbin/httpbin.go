// Package httpbin is an in-process HTTP echo service for exercising the
// client against real sockets. It mirrors a subset of httpbin.org.
package httpbin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"go.opentelemetry.io/otel/trace"
)

// Option configures the handler returned by New.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// WithLogger sets the logger for request and error logs.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithTracer injects the tracer spans are started on.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New returns the echo service handler.
func New(optFns ...Option) http.Handler {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := newApp(opts.logger, opts.tracer, logger(opts.logger), errs(opts.logger), panics())
	routes(a)

	return a
}

// NewServer starts the echo service on a loopback listener.
func NewServer(optFns ...Option) *httptest.Server {
	return httptest.NewServer(New(optFns...))
}

// NewTLSServer starts the echo service over TLS with a self-signed
// certificate available from the server's Certificate method.
func NewTLSServer(optFns ...Option) *httptest.Server {
	return httptest.NewTLSServer(New(optFns...))
}
