package client

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp/client/engine"
	"github.com/adamwoolhether/asynchttp/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	multi          *engine.Multi
	defaults       *Defaults
	rps, burst     int
	userAgent      string
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracerProvider records one span per request. A no-op provider is
// used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		o.tracerProvider = tp
		return nil
	}
}

// WithMeterProvider records request counters and durations. A no-op
// provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) error {
		if mp == nil {
			return errors.New("meter provider must not be nil")
		}
		o.meterProvider = mp
		return nil
	}
}

// WithEngine supplies the transfer engine. The caller keeps ownership:
// [Client.Close] does not close it.
func WithEngine(m *engine.Multi) Option {
	return func(o *options) error {
		if m == nil {
			return errors.New("engine must not be nil")
		}
		o.multi = m
		return nil
	}
}

// WithDefaults sets the values new builders start from. Zero fields take
// the package defaults.
func WithDefaults(d Defaults) Option {
	return func(o *options) error {
		d.ApplyDefaults()
		if err := d.Validate(); err != nil {
			return fmt.Errorf("validating defaults: %w", err)
		}
		o.defaults = &d
		return nil
	}
}

// WithThrottle limits how many queued requests are admitted per second.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.rps, o.burst = rps, burst
		return nil
	}
}

// WithUserAgent sets the User-Agent sent when a request sets none.
func WithUserAgent(ua string) Option {
	return func(o *options) error {
		o.userAgent = ua
		return nil
	}
}
