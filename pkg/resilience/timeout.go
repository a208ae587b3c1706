package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds one call of fn. A non-positive timeout calls fn with ctx
// unchanged. When the bound, and not ctx, ends the call, the error names the
// operation and still matches context.DeadlineExceeded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeoutCause(ctx, timeout, errAttemptTimeout)
	defer cancel()

	err := fn(bounded)
	if err != nil && ctx.Err() == nil && errors.Is(context.Cause(bounded), errAttemptTimeout) {
		return fmt.Errorf("%s exceeded %s: %w", name, timeout, context.DeadlineExceeded)
	}
	return err
}

var errAttemptTimeout = errors.New("attempt timed out")
