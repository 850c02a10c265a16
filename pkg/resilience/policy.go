package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Policy composes the three guards: each attempt is bounded by Timeout and
// passes through Breaker, and failed attempts are retried per Retry.
type Policy struct {
	Name    string
	Breaker *CircuitBreaker
	Retry   RetryConfig
	Timeout time.Duration
}

func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func(ctx context.Context) error {
		return p.bounded(ctx, fn)
	}
	if p.Breaker != nil {
		guarded := attempt
		attempt = func(ctx context.Context) error {
			return p.Breaker.Execute(ctx, guarded)
		}
	}
	return Retry(ctx, p.Name, p.Retry, attempt)
}

// bounded runs one attempt under the per-attempt deadline and returns once it
// passes, even when fn ignores its context. Running past the deadline yields
// ErrTimeout; cancellation of ctx itself is returned as is.
func (p Policy) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	result := make(chan error, 1)
	go func() {
		result <- fn(attemptCtx)
	}()
	select {
	case err := <-result:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return p.timedOut()
		}
		return err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.timedOut()
	}
}

func (p Policy) timedOut() error {
	return apperrors.New(apperrors.ErrTimeout, p.Name, fmt.Sprintf("attempt exceeded %v", p.Timeout))
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
