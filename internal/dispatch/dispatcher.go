package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/eventflow/internal/breaker"
	apperrors "github.com/allisson/eventflow/internal/errors"
	"github.com/allisson/eventflow/internal/metrics"
	"github.com/allisson/eventflow/internal/queue"
)

// DefaultChunkSize bounds the number of simultaneous in-flight store
// operations under the chunked policy.
const DefaultChunkSize = 5

// Policy selects how messages within a batch are scheduled.
type Policy string

const (
	// PolicyChunked partitions the batch into fixed-size groups. Messages in a
	// group are processed concurrently with all-settled semantics; group N+1
	// starts only after group N has fully settled.
	PolicyChunked Policy = "chunked"

	// PolicyFullConcurrency dispatches every message in the batch at once.
	PolicyFullConcurrency Policy = "full"
)

// Handler processes the body of a single queue message. Expected failure
// conditions (validation, conflict, not-found, unavailable dependencies) are
// returned as errors wrapping the sentinel kinds in internal/errors; they are
// never allowed to abort sibling messages.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// Config holds dispatcher configuration.
type Config struct {
	// Name labels logs and metrics (e.g. "signup", "deadletter").
	Name string
	// Policy is the concurrency policy; defaults to PolicyChunked.
	Policy Policy
	// ChunkSize is the group size under PolicyChunked; defaults to DefaultChunkSize.
	ChunkSize int
}

// Dispatcher fans a delivered batch out to the handler and collects
// per-message outcomes.
type Dispatcher struct {
	config  Config
	handler Handler
	breaker *breaker.CircuitBreaker
	metrics metrics.ConsumerMetrics
	logger  *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	cfg Config,
	handler Handler,
	cb *breaker.CircuitBreaker,
	consumerMetrics metrics.ConsumerMetrics,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.Policy == "" {
		cfg.Policy = PolicyChunked
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if consumerMetrics == nil {
		consumerMetrics = metrics.NewNoOpConsumerMetrics()
	}
	return &Dispatcher{
		config:  cfg,
		handler: handler,
		breaker: cb,
		metrics: consumerMetrics,
		logger:  logger,
	}
}

// Dispatch processes the batch under the configured policy and returns the
// partial-failure result for the queue runtime. It never returns an error: a
// message that cannot be processed is reported as a failure keyed by its
// identifier.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []queue.Message) queue.BatchResult {
	started := time.Now()
	results := make([]Result, len(messages))

	chunkSize := d.config.ChunkSize
	if d.config.Policy == PolicyFullConcurrency {
		chunkSize = len(messages)
	}

	for start := 0; start < len(messages); start += chunkSize {
		end := min(start+chunkSize, len(messages))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = d.process(ctx, messages[idx])
			}(i)
		}
		wg.Wait()
	}

	d.record(ctx, results)

	result := Report(results)
	d.metrics.RecordBatch(ctx, d.config.Name, len(messages), len(result.BatchItemFailures), time.Since(started))
	return result
}

// process handles one message behind the circuit breaker gate. A panic in the
// handler is normalized into a failure result so it cannot abort sibling
// messages.
func (d *Dispatcher) process(ctx context.Context, msg queue.Message) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.breaker.OnFailure()
			result = Fail(msg.MessageID, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if !d.breaker.Allow() {
		// Fail fast without touching the store; the message is redelivered
		// once the breaker half-opens.
		return Fail(msg.MessageID, apperrors.ErrUnavailable)
	}

	if err := d.handler.Handle(ctx, msg); err != nil {
		d.breaker.OnFailure()
		return Fail(msg.MessageID, err)
	}

	d.breaker.OnSuccess()
	return Succeed(msg.MessageID)
}

// record logs failures and emits per-message metrics.
func (d *Dispatcher) record(ctx context.Context, results []Result) {
	for _, result := range results {
		if result.Status == StatusSuccess {
			d.metrics.RecordMessage(ctx, d.config.Name, "success", "")
			continue
		}

		d.metrics.RecordMessage(ctx, d.config.Name, "failure", string(result.Kind))
		d.logger.Error("message processing failed",
			slog.String("handler", d.config.Name),
			slog.String("message_id", result.Identifier),
			slog.String("kind", string(result.Kind)),
			slog.Any("error", result.Err),
		)

		if result.Kind == apperrors.KindUnavailable {
			d.metrics.RecordBreakerOpen(ctx, d.config.Name)
		}
	}
}
