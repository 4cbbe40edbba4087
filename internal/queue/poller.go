package queue

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// Dispatcher processes a delivered batch and reports which messages failed.
type Dispatcher interface {
	Dispatch(ctx context.Context, messages []Message) BatchResult
}

// Consumer is the queue runtime boundary used by the poller.
type Consumer interface {
	Receive(ctx context.Context, maxMessages int32) ([]Message, error)
	Acknowledge(ctx context.Context, messages []Message, result BatchResult) error
}

// PollerConfig holds poller configuration.
type PollerConfig struct {
	// BatchSize is the maximum number of messages fetched per poll (SQS allows up to 10).
	BatchSize int32
	// PollsPerSecond throttles the receive loop.
	PollsPerSecond float64
	// PollBurst is the rate limiter burst size.
	PollBurst int
	// IdleBackoff is how long to wait after a receive error before retrying.
	IdleBackoff time.Duration
}

// Poller is the consumption loop: receive a batch, dispatch it, acknowledge
// per the partial-failure result, repeat until the context is canceled.
type Poller struct {
	config     PollerConfig
	consumer   Consumer
	dispatcher Dispatcher
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewPoller creates a new Poller.
func NewPoller(cfg PollerConfig, consumer Consumer, dispatcher Dispatcher, logger *slog.Logger) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollsPerSecond <= 0 {
		cfg.PollsPerSecond = 5
	}
	if cfg.PollBurst <= 0 {
		cfg.PollBurst = 1
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = time.Second
	}
	return &Poller{
		config:     cfg,
		consumer:   consumer,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(cfg.PollsPerSecond), cfg.PollBurst),
		logger:     logger,
	}
}

// Run blocks consuming batches until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting poller", slog.Int("batch_size", int(p.config.BatchSize)))

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Info("stopping poller")
			return err
		}

		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("stopping poller")
				return ctx.Err()
			}
			p.logger.Error("poll failed", slog.Any("error", err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.IdleBackoff):
			}
		}
	}
}

// poll performs one receive/dispatch/acknowledge cycle.
func (p *Poller) poll(ctx context.Context) error {
	messages, err := p.consumer.Receive(ctx, p.config.BatchSize)
	if err != nil {
		return apperrors.Wrap(err, "receive failed")
	}
	if len(messages) == 0 {
		return nil
	}

	result := p.dispatcher.Dispatch(ctx, messages)
	if len(result.BatchItemFailures) > 0 {
		p.logger.Warn("batch completed with failures",
			slog.Int("received", len(messages)),
			slog.Int("failed", len(result.BatchItemFailures)),
		)
	}

	if err := p.consumer.Acknowledge(ctx, messages, result); err != nil {
		return apperrors.Wrap(err, "acknowledge failed")
	}

	return nil
}
