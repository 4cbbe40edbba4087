package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ConsumerMetrics defines the interface for recording message consumption metrics.
// Implementations track per-message outcomes, batch durations, and circuit
// breaker rejections for observability across the different consumers.
type ConsumerMetrics interface {
	// RecordMessage records one processed message.
	// Handler examples: "signup", "restaurant", "datastore", "deadletter"
	// Status is "success" or "failure"; kind is the error kind on failure ("" on success).
	RecordMessage(ctx context.Context, handler, status, kind string)

	// RecordBatch records a dispatched batch with its size, failure count, and duration.
	RecordBatch(ctx context.Context, handler string, size, failures int, duration time.Duration)

	// RecordBreakerOpen records a message rejected by the open circuit breaker.
	RecordBreakerOpen(ctx context.Context, handler string)
}

// consumerMetrics implements ConsumerMetrics using OpenTelemetry metrics.
type consumerMetrics struct {
	messageCounter     metric.Int64Counter
	batchSizeCounter   metric.Int64Counter
	batchDurationHisto metric.Float64Histogram
	breakerOpenCounter metric.Int64Counter
}

// NewConsumerMetrics creates a new ConsumerMetrics implementation using the provided
// meter provider. The namespace parameter is used as a prefix for all metric names.
// Returns error if meters cannot be initialized.
func NewConsumerMetrics(meterProvider metric.MeterProvider, namespace string) (ConsumerMetrics, error) {
	meter := meterProvider.Meter(namespace)

	messageCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_messages_total", namespace),
		metric.WithDescription("Total number of processed queue messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message counter: %w", err)
	}

	batchSizeCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_batch_messages_total", namespace),
		metric.WithDescription("Total number of messages received in batches"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch size counter: %w", err)
	}

	batchDurationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_batch_duration_seconds", namespace),
		metric.WithDescription("Duration of batch dispatches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch duration histogram: %w", err)
	}

	breakerOpenCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_breaker_rejections_total", namespace),
		metric.WithDescription("Total number of messages rejected by the open circuit breaker"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create breaker rejection counter: %w", err)
	}

	return &consumerMetrics{
		messageCounter:     messageCounter,
		batchSizeCounter:   batchSizeCounter,
		batchDurationHisto: batchDurationHisto,
		breakerOpenCounter: breakerOpenCounter,
	}, nil
}

// RecordMessage increments the message counter with handler, status, and kind labels.
func (c *consumerMetrics) RecordMessage(ctx context.Context, handler, status, kind string) {
	c.messageCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("handler", handler),
			attribute.String("status", status),
			attribute.String("kind", kind),
		),
	)
}

// RecordBatch records the batch size, failure count, and dispatch duration.
func (c *consumerMetrics) RecordBatch(
	ctx context.Context,
	handler string,
	size, failures int,
	duration time.Duration,
) {
	attrs := metric.WithAttributes(attribute.String("handler", handler))

	c.batchSizeCounter.Add(ctx, int64(size), attrs)
	c.batchDurationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("handler", handler),
			attribute.Bool("partial_failure", failures > 0),
		),
	)
}

// RecordBreakerOpen increments the breaker rejection counter.
func (c *consumerMetrics) RecordBreakerOpen(ctx context.Context, handler string) {
	c.breakerOpenCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("handler", handler)),
	)
}

// NoOpConsumerMetrics is a no-op implementation of ConsumerMetrics for when metrics are disabled.
type NoOpConsumerMetrics struct{}

// NewNoOpConsumerMetrics creates a no-op ConsumerMetrics implementation.
func NewNoOpConsumerMetrics() ConsumerMetrics {
	return &NoOpConsumerMetrics{}
}

// RecordMessage does nothing when metrics are disabled.
func (n *NoOpConsumerMetrics) RecordMessage(ctx context.Context, handler, status, kind string) {
	// No-op
}

// RecordBatch does nothing when metrics are disabled.
func (n *NoOpConsumerMetrics) RecordBatch(
	ctx context.Context,
	handler string,
	size, failures int,
	duration time.Duration,
) {
	// No-op
}

// RecordBreakerOpen does nothing when metrics are disabled.
func (n *NoOpConsumerMetrics) RecordBreakerOpen(ctx context.Context, handler string) {
	// No-op
}
