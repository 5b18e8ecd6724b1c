package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its timeout. It wraps
// context.DeadlineExceeded.
var ErrTimeout = fmt.Errorf("operation timed out: %w", context.DeadlineExceeded)

// WithTimeout runs fn with a context bounded by timeout. A non-positive timeout runs fn
// with ctx unchanged. A deadline hit while fn runs is reported as ErrTimeout even when
// fn returns a wrapped context error.
//
// WithTimeout waits for fn to return, so fn must stop when its context is done. An fn
// that ignores the context keeps the caller blocked past the deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
