package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"conversation-analytics/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

func newTestBreaker(isFailure FailurePredicate) (*CircuitBreaker, *time.Time) {
	cfg := DefaultCircuitBreakerConfig("test")
	cfg.FailureThreshold = 2
	cfg.SuccessThreshold = 1
	cfg.RetryTimeout = time.Minute
	cfg.IsFailure = isFailure
	cb := NewCircuitBreaker(cfg, logger.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(nil)
	fail := func(context.Context) error { return errDown }

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, uint64(1), cb.Stats().TotalRejected)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb, now := newTestBreaker(nil)
	fail := func(context.Context) error { return errDown }
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.GetState())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	errConstraint := errors.New("duplicate key")
	cb, _ := newTestBreaker(func(err error) bool { return errors.Is(err, errDown) })

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errConstraint }), errConstraint)
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, uint64(0), cb.Stats().TotalFailures)
}

func TestCircuitBreaker_CancelledCallerNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}
