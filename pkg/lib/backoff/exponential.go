package backoff

import (
	"context"
	"time"
)

// Exponential doubles the wait after every failed attempt, starting at Base
// and capped at Max.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func NewExponential(base, max time.Duration) *Exponential {
	return &Exponential{Base: base, Max: max}
}

func (e *Exponential) BackoffDuration(attempts int) time.Duration {
	if attempts <= 0 || e.Base <= 0 {
		return 0
	}
	wait := e.Base
	for i := 1; i < attempts; i++ {
		if wait >= e.Max/2 {
			return e.Max
		}
		wait *= 2
	}
	return min(wait, e.Max)
}

// Backoff blocks for the wait of attempts or until ctx is done.
func (e *Exponential) Backoff(ctx context.Context, attempts int) {
	wait := e.BackoffDuration(attempts)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

var _ Backoff = (*Exponential)(nil)
