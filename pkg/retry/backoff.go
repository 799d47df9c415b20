package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backoff computes the delay before the next retry attempt.
type Backoff interface {
	Next(attempt int) time.Duration
}

// ConstantBackoff waits the same Delay before every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

// Next returns Delay regardless of attempt.
func (b ConstantBackoff) Next(attempt int) time.Duration {
	if b.Delay < 0 {
		return 0
	}
	return b.Delay
}

// ExponentialBackoff doubles Initial on every attempt and never exceeds Max.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Next returns Initial for attempt 1, twice that for attempt 2, and so on.
func (b ExponentialBackoff) Next(attempt int) time.Duration {
	delay := b.Initial
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		if b.Max > 0 && delay >= b.Max {
			break
		}
		delay *= 2
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// Policy names accepted by ForPolicy.
const (
	PolicyConstant    = "constant"
	PolicyExponential = "exponential"
)

var ErrUnknownPolicy = errors.New("retry: unknown backoff policy")

// ForPolicy builds the named policy. delay is the first wait; maxDelay caps
// the exponential policy and is ignored otherwise. An empty name is constant.
func ForPolicy(name string, delay, maxDelay time.Duration) (Backoff, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyConstant:
		return ConstantBackoff{Delay: delay}, nil
	case PolicyExponential:
		return ExponentialBackoff{Initial: delay, Max: maxDelay}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// DefaultBackoff returns the token retry policy: a fixed two second pause.
func DefaultBackoff() Backoff {
	return ConstantBackoff{Delay: 2 * time.Second}
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
