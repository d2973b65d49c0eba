// Package controller drives single simulation runs to a terminal outcome.
//
// A SubmissionController runs one archive against one simulator, serving the
// result from the content cache when possible. A LookupController resolves a
// run id that was executed outside of this service. Both poll the executor
// until the run is terminal and fetch the output catalog of successful runs.
package controller

import (
	"context"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// SimulatorResolver resolves simulator references to immutable identities.
type SimulatorResolver interface {
	Resolve(ctx context.Context, ref models.SimulatorRef) (models.Simulator, error)
}

// Observer is notified of the progress of a controller. Calls are made from
// the controller goroutine and must not block for long.
type Observer interface {
	// OnProgress is called on every phase or status change.
	OnProgress(ctx context.Context, progress models.RunProgress)
	// OnHeartbeat is called once per polling iteration.
	OnHeartbeat(ctx context.Context)
}

// NoopObserver ignores every notification.
type NoopObserver struct{}

func (NoopObserver) OnProgress(context.Context, models.RunProgress) {}
func (NoopObserver) OnHeartbeat(context.Context)                    {}

// Outcome is the terminal result of a controller.
type Outcome struct {
	// Progress is the last progress reported by the controller.
	Progress models.RunProgress
	// Record is the run record of a DONE controller. It is not necessarily
	// stored in the cache, see Cached on Progress.
	Record models.RunRecord
	// Err is set when the controller FAILED.
	Err error
}

// Succeeded returns true if the run finished with usable outputs.
func (o Outcome) Succeeded() bool {
	return o.Progress.Phase == models.PhaseDone
}

// NotFound returns true if the executor does not know the run id.
func (o Outcome) NotFound() bool {
	return o.Progress.Status == models.RunStatusRunIDNotFound
}

// compile time check whether the NoopObserver implements the Observer interface.
var _ Observer = NoopObserver{}
