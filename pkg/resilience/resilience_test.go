package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

var errDownstream = errors.New("downstream unavailable")

func fail(ctx context.Context) error { return errDownstream }
func ok(ctx context.Context) error   { return nil }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("encoder", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(name string, to State) { transitions = append(transitions, to) },
	})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDownstream)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDownstream)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("encoder", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	now = now.Add(2 * time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker("encoder", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryStopsOnSuccess(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "score", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errDownstream
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "score", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return errDownstream
	})
	assert.ErrorIs(t, err, errDownstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "score", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return ErrCircuitOpen
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPolicyBoundsEachAttempt(t *testing.T) {
	p := Policy{Name: "cross-encoder", Timeout: 10 * time.Millisecond, Retry: RetryConfig{MaxAttempts: 1}}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout, "an attempt ignoring its context is abandoned")

	err = p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout, "a deadline honoured by fn is reported as a timeout")

	assert.NoError(t, p.Do(context.Background(), ok))
}

func TestPolicyKeepsParentCancellation(t *testing.T) {
	p := Policy{Name: "cross-encoder", Timeout: time.Second, Retry: RetryConfig{MaxAttempts: 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}

func TestPolicyRetriesThroughBreaker(t *testing.T) {
	cb := NewCircuitBreaker("encoder", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	p := Policy{
		Name:    "encoder",
		Breaker: cb,
		Retry:   RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond},
		Timeout: time.Second,
	}
	var calls atomic.Int32
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return errDownstream
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "breaker stops further attempts once open")
}
