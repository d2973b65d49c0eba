package telemetry

import (
	"context"
	"time"
)

// NewDetachedContext returns a context that keeps the values of parent, such
// as its logger, but is never cancelled and has no deadline. Writes that must
// land after a job was cancelled run under it.
func NewDetachedContext(parent context.Context) context.Context {
	return detached{Context: parent}
}

type detached struct {
	context.Context
}

func (detached) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (detached) Done() <-chan struct{} {
	return nil
}

func (detached) Err() error {
	return nil
}
