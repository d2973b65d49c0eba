package backoff

import (
	"context"
	"time"
)

// Backoff decides how long to wait before the next attempt of a retried operation.
type Backoff interface {
	// Backoff blocks for the duration of the given attempt or until ctx is done.
	Backoff(ctx context.Context, attempts int)
	// BackoffDuration returns the wait for the given attempt without blocking.
	BackoffDuration(attempts int) time.Duration
}
