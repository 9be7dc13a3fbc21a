package retry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCoordinator_Run(t *testing.T) {
	ctx := context.Background()
	coordinator := NewCoordinator(newTestLogger())
	policy := Policy{MaxAttempts: 3, PerAttemptTimeout: time.Second}

	t.Run("SucceedsFirstAttempt", func(t *testing.T) {
		calls := 0
		result, err := coordinator.Run(ctx, "op", policy, func(ctx context.Context) (string, error) {
			calls++
			return "done", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "done", result)
		assert.Equal(t, 1, calls)
	})

	t.Run("RetriesTransientFailure", func(t *testing.T) {
		calls := 0
		result, err := coordinator.Run(ctx, "op", policy, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "recovered", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "recovered", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("ExhaustsAttempts", func(t *testing.T) {
		calls := 0
		stepErr := errors.New("still broken")
		_, err := coordinator.Run(ctx, "op", policy, func(ctx context.Context) (string, error) {
			calls++
			return "", stepErr
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
		assert.ErrorIs(t, err, stepErr)
		assert.Equal(t, 3, calls)
	})

	t.Run("PermanentErrorNotRetried", func(t *testing.T) {
		calls := 0
		_, err := coordinator.Run(ctx, "op", policy, func(ctx context.Context) (string, error) {
			calls++
			return "", Permanent(errors.New("bad input"))
		})

		require.Error(t, err)
		assert.True(t, IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("CanceledContextReturnsImmediately", func(t *testing.T) {
		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		_, err := coordinator.Run(canceledCtx, "op", policy, func(ctx context.Context) (string, error) {
			calls++
			return "", nil
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, calls)
	})

	t.Run("ZeroMaxAttemptsRunsOnce", func(t *testing.T) {
		calls := 0
		_, err := coordinator.Run(ctx, "op", Policy{MaxAttempts: 0}, func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("fails")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestDefaultPolicies(t *testing.T) {
	movement := DefaultMovementPolicy()
	assert.Equal(t, 3, movement.MaxAttempts)
	assert.Equal(t, 5*time.Minute, movement.PerAttemptTimeout)

	webhook := DefaultWebhookPolicy()
	assert.Equal(t, 3, webhook.MaxAttempts)
	assert.Equal(t, 2*time.Minute, webhook.PerAttemptTimeout)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	inner := errors.New("boom")
	wrapped := Permanent(inner)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, inner)
	assert.False(t, IsPermanent(inner))
}
