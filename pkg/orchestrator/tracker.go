package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

// progressTracker serializes the progress writes of the controllers of one
// job. Every write replaces the persisted progress, so status reads never
// depend on the running controllers.
type progressTracker struct {
	mu    sync.Mutex
	store store.Store
	job   models.VerificationJob
	// cancel stops the controllers of the job once it was finished by
	// someone else, e.g. a cancellation from another process.
	cancel context.CancelFunc
	// detached is set once the job is no longer owned by this tracker.
	// Later writes are dropped.
	detached bool
}

func newProgressTracker(s store.Store, job models.VerificationJob, cancel context.CancelFunc) *progressTracker {
	return &progressTracker{store: s, job: job.Copy(), cancel: cancel}
}

func (t *progressTracker) update(ctx context.Context, index int, progress models.RunProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return
	}
	t.job.Runs[index] = progress
	if _, err := t.write(ctx, t.job); err != nil {
		t.handleError(ctx, err)
	}
}

func (t *progressTracker) heartbeat(ctx context.Context) {
	t.mu.Lock()
	detached := t.detached
	t.mu.Unlock()
	if detached {
		return
	}
	err := t.store.Heartbeat(ctx, t.job.ID)
	if err == nil {
		return
	}
	if isFinishedElsewhere(err) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.release(ctx, err)
		return
	}
	log.Ctx(ctx).Debug().Err(err).Msg("failed to record job heartbeat")
}

// finish writes the terminal state of the job.
func (t *progressTracker) finish(ctx context.Context, state models.JobState, message string, results *models.ComparisonResults) (models.VerificationJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return models.VerificationJob{}, store.NewErrJobAlreadyTerminal(t.job.ID, models.JobStateUndefined, state)
	}
	t.job.State = state
	t.job.Error = message
	t.job.Results = results
	updated, err := t.write(ctx, t.job)
	if err != nil {
		t.handleError(ctx, err)
		return models.VerificationJob{}, err
	}
	t.detached = true
	return updated, nil
}

func (t *progressTracker) write(ctx context.Context, job models.VerificationJob) (models.VerificationJob, error) {
	return t.store.UpdateJob(ctx, store.UpdateJobRequest{
		JobID: job.ID,
		Condition: store.UpdateJobCondition{
			ExpectedState: models.JobStateInProgress,
		},
		NewValues: job.Copy(),
	})
}

func (t *progressTracker) handleError(ctx context.Context, err error) {
	if isFinishedElsewhere(err) {
		t.release(ctx, err)
		return
	}
	log.Ctx(ctx).Warn().Err(err).Msg("failed to persist job progress")
}

// release drops later writes and stops the controllers. Callers hold t.mu.
func (t *progressTracker) release(ctx context.Context, err error) {
	if t.detached {
		return
	}
	log.Ctx(ctx).Info().Err(err).Msg("job is no longer in progress, stopping its controllers")
	t.detached = true
	if t.cancel != nil {
		t.cancel()
	}
}

func isFinishedElsewhere(err error) bool {
	return errors.As(err, &store.ErrJobAlreadyTerminal{}) ||
		errors.As(err, &store.ErrInvalidJobState{}) ||
		errors.As(err, &store.ErrJobNotFound{})
}

// runObserver forwards the notifications of one controller to the tracker.
type runObserver struct {
	tracker *progressTracker
	index   int
}

func (o runObserver) OnProgress(ctx context.Context, progress models.RunProgress) {
	o.tracker.update(ctx, o.index, progress)
}

func (o runObserver) OnHeartbeat(ctx context.Context) {
	o.tracker.heartbeat(ctx)
}
