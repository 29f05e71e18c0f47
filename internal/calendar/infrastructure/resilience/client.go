// Package resilience decorates the calendar port with a circuit breaker,
// per-call timeouts, and bounded retry for reads. Mutations are never
// retried; the execution layer owns their compensation.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/accord/internal/calendar/application"
	schedDomain "github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// Config configures the resilient calendar client.
type Config struct {
	// CallTimeout bounds every single call to the backend.
	CallTimeout time.Duration

	// MaxRetries is the retry budget for idempotent reads.
	MaxRetries int

	// RetryBaseDelay is the first retry delay; it doubles per attempt.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff.
	RetryMaxDelay time.Duration

	// MaxRequests is the number of probes allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold trips the breaker after this many consecutive failures.
	FailureThreshold uint32
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		CallTimeout:      10 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    2 * time.Second,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Client wraps a calendar backend with the failure policy shared by all
// schedulers. Failures surface as ExternalServiceError so callers never see
// backend-specific errors.
type Client struct {
	inner   application.Client
	breaker *gobreaker.CircuitBreaker[any]
	config  Config
	logger  *slog.Logger
}

var _ application.Client = (*Client)(nil)

// NewClient decorates a calendar backend.
func NewClient(inner application.Client, config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "calendar",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		config:  config,
		logger:  logger,
	}
}

// Events reads with retry: lookups are idempotent, so transient backend
// failures burn retry budget instead of failing the scheduling request.
func (c *Client) Events(ctx context.Context, participant string, start, end time.Time) ([]application.Event, error) {
	var events []application.Event
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Debug("retrying calendar read",
				"participant", participant,
				"attempt", attempt,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return nil, schedDomain.NewExternalServiceError("calendar read cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := c.call(ctx, func(callCtx context.Context) (any, error) {
			return c.inner.Events(callCtx, participant, start, end)
		})
		if err == nil {
			events = result.([]application.Event)
			return events, nil
		}
		lastErr = err

		// An open breaker will not recover within the retry budget.
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}
	return nil, schedDomain.NewExternalServiceError("calendar lookup failed for "+participant, lastErr)
}

// Create mutates without retry.
func (c *Client) Create(ctx context.Context, event application.Event) error {
	_, err := c.call(ctx, func(callCtx context.Context) (any, error) {
		return nil, c.inner.Create(callCtx, event)
	})
	if err != nil {
		return schedDomain.NewExternalServiceError("calendar create failed", err)
	}
	return nil
}

// Delete mutates without retry.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	_, err := c.call(ctx, func(callCtx context.Context) (any, error) {
		return nil, c.inner.Delete(callCtx, eventID)
	})
	if err != nil {
		return schedDomain.NewExternalServiceError("calendar delete failed", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
	if delay > c.config.RetryMaxDelay {
		delay = c.config.RetryMaxDelay
	}
	return delay
}
