package client

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/adamwoolhether/asynchttp/client"

// metrics holds the instruments recorded over a request's lifecycle.
type metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	requestTotal, err := meter.Int64Counter("asynchttp.request.total",
		metric.WithDescription("Requests reaped, by final status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("asynchttp.request.duration",
		metric.WithDescription("Time from send to final status in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	requestActive, err := meter.Int64UpDownCounter("asynchttp.request.active",
		metric.WithDescription("Requests registered with the engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.active counter: %w", err)
	}

	return &metrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestActive:   requestActive,
	}, nil
}

func (m *metrics) admitted(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

func (m *metrics) reaped(ctx context.Context, method string, status Status, registered bool, took time.Duration) {
	if registered {
		m.requestActive.Add(ctx, -1)
	}
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status.String()),
	))
	m.requestDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
	))
}

// startSpan opens the span covering a request from send to reap.
func startSpan(tracer trace.Tracer, parent context.Context, id, method, url string) (context.Context, trace.Span) {
	return tracer.Start(parent, "asynchttp.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request.id", id),
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		),
	)
}

func endSpan(span trace.Span, status Status, statusCode int, err error) {
	span.SetAttributes(attribute.String("asynchttp.status", status.String()))
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// injectTrace writes the span context of ctx into outbound headers.
func injectTrace(ctx context.Context, h Headers) Headers {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		if !h.Has(k) {
			h.Set(k, v)
		}
	}
	return h
}
