package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls when a failing channel is short-circuited.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// Dispatcher is the fire-and-forget front of the push and email channels.
// Every call is bounded by its own timeout and each channel sits behind a
// circuit breaker, so a dead channel costs nothing once it has tripped.
// Either channel may be nil, in which case it is disabled.
type Dispatcher struct {
	pusher  Pusher
	mailer  Mailer
	push    *gobreaker.CircuitBreaker
	mail    *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(pusher Pusher, mailer Mailer, cfg BreakerConfig, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.Named("notify")
	return &Dispatcher{
		pusher:  pusher,
		mailer:  mailer,
		push:    newBreaker("push", cfg, logger),
		mail:    newBreaker("email", cfg, logger),
		timeout: timeout,
		logger:  logger,
	}
}

func newBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg = DefaultBreakerConfig()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification channel state changed",
				zap.String("channel", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Push delivers msg to the channel address to. Failures are logged only.
func (d *Dispatcher) Push(ctx context.Context, to string, msg Message) {
	if d.pusher == nil {
		d.logger.Debug("push channel disabled, dropping message", zap.String("to", to))
		return
	}
	d.deliver(ctx, d.push, "push", to, func(ctx context.Context) error {
		return d.pusher.Push(ctx, to, msg)
	})
}

// Email sends a plain-text mail. Failures are logged only.
func (d *Dispatcher) Email(ctx context.Context, to, subject, body string) {
	if d.mailer == nil {
		d.logger.Debug("email channel disabled, dropping message", zap.String("to", to))
		return
	}
	d.deliver(ctx, d.mail, "email", to, func(ctx context.Context) error {
		return d.mailer.Send(ctx, to, subject, body)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, cb *gobreaker.CircuitBreaker, channel, to string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	switch {
	case err == nil:
		d.logger.Debug("notification delivered", zap.String("channel", channel), zap.String("to", to))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.logger.Warn("notification skipped, channel open", zap.String("channel", channel), zap.String("to", to))
	default:
		d.logger.Error("notification failed", zap.String("channel", channel), zap.String("to", to), zap.Error(err))
	}
}
