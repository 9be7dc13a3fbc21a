// Package retry wraps step executions with a bounded-attempt retry policy.
// Transient failures (timeouts, transport errors) are retried; permanent
// failures propagate immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds one operation's retry behavior
type Policy struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
}

// DefaultMovementPolicy applies to movement processing steps
func DefaultMovementPolicy() Policy {
	return Policy{MaxAttempts: 3, PerAttemptTimeout: 5 * time.Minute}
}

// DefaultWebhookPolicy applies to webhook delivery steps
func DefaultWebhookPolicy() Policy {
	return Policy{MaxAttempts: 3, PerAttemptTimeout: 2 * time.Minute}
}

// Operation is one retryable unit of work producing a result summary
type Operation func(ctx context.Context) (string, error)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable. Validation failures are wrapped
// with Permanent so they propagate on the first attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ErrAttemptsExhausted wraps the last attempt's error once the policy's
// attempt budget is spent. The caller must treat it as step failure.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Coordinator runs operations under a Policy
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator creates a retry coordinator
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{logger: logger}
}

// Run executes op, retrying transient failures up to policy.MaxAttempts.
// Each attempt carries its own timeout. Permanent errors and context
// cancellation return immediately.
func (c *Coordinator) Run(ctx context.Context, name string, policy Policy, op Operation) (string, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		}

		result, err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		lastErr = err
		if IsPermanent(err) {
			c.logger.Error("Operation failed permanently, not retrying",
				"operation", name,
				"attempt", attempt,
				"error", err,
			)
			return "", err
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}

		c.logger.Warn("Operation attempt failed",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
	}

	return "", fmt.Errorf("%w: %s failed after %d attempts: %w", ErrAttemptsExhausted, name, attempts, lastErr)
}
