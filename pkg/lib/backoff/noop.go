package backoff

import (
	"context"
	"time"
)

// Noop retries immediately. Tests use it to exercise retry budgets without
// waiting.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Backoff(context.Context, int) {}

func (*Noop) BackoffDuration(int) time.Duration {
	return 0
}

// compile time check whether the Noop implements the Backoff interface.
var _ Backoff = (*Noop)(nil)
