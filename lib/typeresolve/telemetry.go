// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typeresolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

const instrumentationName = "github.com/bureau-foundation/xcdr/lib/typeresolve"

// Resolution outcomes, reported as the "outcome" attribute.
const (
	outcomeResolved   = "resolved"
	outcomeUnresolved = "unresolved"
	outcomeMalformed  = "malformed"
	outcomeCancelled  = "cancelled"
	outcomeOK         = "ok"
	outcomeError      = "error"
)

type telemetry struct {
	tracer trace.Tracer

	resolutions    metric.Int64Counter
	resolveSeconds metric.Float64Histogram
	fetches        metric.Int64Counter
	sharedFetches  metric.Int64Counter
}

func newTelemetry(meterProvider metric.MeterProvider, tracerProvider trace.TracerProvider) (*telemetry, error) {
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	meter := meterProvider.Meter(instrumentationName)

	result := &telemetry{tracer: tracerProvider.Tracer(instrumentationName)}
	var err error
	result.resolutions, err = meter.Int64Counter("xtypes_resolutions_total",
		metric.WithDescription("Type resolutions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("typeresolve: creating resolution counter: %w", err)
	}
	result.resolveSeconds, err = meter.Float64Histogram("xtypes_resolve_duration_seconds",
		metric.WithDescription("Time from Resolve to its result"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("typeresolve: creating resolve histogram: %w", err)
	}
	result.fetches, err = meter.Int64Counter("xtypes_type_object_fetches_total",
		metric.WithDescription("Fetcher calls by outcome"))
	if err != nil {
		return nil, fmt.Errorf("typeresolve: creating fetch counter: %w", err)
	}
	result.sharedFetches, err = meter.Int64Counter("xtypes_type_object_fetches_shared_total",
		metric.WithDescription("Fetch requests satisfied by a call already in flight"))
	if err != nil {
		return nil, fmt.Errorf("typeresolve: creating shared fetch counter: %w", err)
	}
	return result, nil
}

func (t *telemetry) startResolve(ctx context.Context, id xtypes.TypeIdentifier) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "typeresolve.Resolve",
		trace.WithAttributes(attribute.String("xtypes.type_identifier", id.String())))
}

func (t *telemetry) recordResolve(ctx context.Context, span trace.Span, elapsed time.Duration, err error) {
	outcome := outcomeResolved
	switch {
	case err == nil:
	case errors.Is(err, ErrUnresolvedType):
		outcome = outcomeUnresolved
	case errors.Is(err, xtypes.ErrMalformedTypeIdentifier):
		outcome = outcomeMalformed
	default:
		outcome = outcomeCancelled
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("outcome", outcome))

	attributes := metric.WithAttributes(attribute.String("outcome", outcome))
	t.resolutions.Add(ctx, 1, attributes)
	t.resolveSeconds.Record(ctx, elapsed.Seconds(), attributes)
}

func (t *telemetry) startFetch(ctx context.Context, id xtypes.TypeIdentifier) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "typeresolve.Fetch",
		trace.WithAttributes(attribute.String("xtypes.type_identifier", id.String())))
}

func (t *telemetry) recordFetch(ctx context.Context, span trace.Span, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
	}
	t.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (t *telemetry) recordSharedFetch(ctx context.Context) {
	t.sharedFetches.Add(ctx, 1)
}
