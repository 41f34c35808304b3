// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "simflow"

// observe runs fn inside a span named op, records count, duration and error
// metrics for it, and logs its start and completion. The returned error is
// fn's.
func observe(
	ctx context.Context,
	logger *zap.Logger,
	op string,
	fn func(ctx context.Context) error,
	fields ...zap.Field,
) error {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	meter := otel.GetMeterProvider().Meter(instrumentationName)
	counter, _ := meter.Int64Counter(op + ".count")
	duration, _ := meter.Float64Histogram(op+".duration", metric.WithUnit("s"))
	counter.Add(ctx, 1)

	logger = logger.With(zap.String("operation", op))
	logger.Debug("Starting", fields...)

	startTime := time.Now()
	err := fn(ctx)
	elapsed := time.Since(startTime)
	duration.Record(ctx, elapsed.Seconds())

	if err != nil {
		errorCounter, _ := meter.Int64Counter(op + ".errors")
		errorCounter.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("Failed", append(fields, zap.Duration("duration", elapsed), zap.Error(err))...)
	} else {
		logger.Debug("Completed", append(fields, zap.Duration("duration", elapsed))...)
	}
	return err
}

// annotate adds attributes to the span carried by ctx, if any.
func annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
