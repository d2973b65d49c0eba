package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/bacalhau-project/simverify/pkg/lib/backoff"
	"github.com/bacalhau-project/simverify/pkg/logger"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

const (
	WorkerStatusInit     = "Initialized"
	WorkerStatusStarting = "Starting"
	WorkerStatusRunning  = "Running"
	WorkerStatusStopping = "Stopping"
	WorkerStatusStopped  = "Stopped"

	DefaultClaimInterval = time.Second
)

// JobRunner runs claimed jobs to completion.
type JobRunner interface {
	RunJob(ctx context.Context, job models.VerificationJob) (models.VerificationJob, error)
}

type WorkerParams struct {
	// ID identifies the worker in claimed jobs. A random id is used when empty.
	ID     string
	Store  store.Store
	Runner JobRunner
	// ClaimInterval is how long the worker waits when no job is pending.
	ClaimInterval time.Duration
	// ClaimFailureBackoff defines the backoff strategy when claiming a job fails.
	ClaimFailureBackoff backoff.Backoff
	Clock               clock.Clock
}

// Worker is a long-running process that claims pending verification jobs
// and runs them. The worker is single-threaded and runs one job at a time.
// A process can have multiple workers working in parallel.
type Worker struct {
	id                  string
	store               store.Store
	runner              JobRunner
	claimInterval       time.Duration
	claimFailureBackoff backoff.Backoff
	clock               clock.Clock

	status       atomic.String
	startOnce    sync.Once
	shutdownOnce sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker returns a new Worker instance.
func NewWorker(params WorkerParams) *Worker {
	if params.ID == "" {
		params.ID = uuid.NewString()
	}
	if params.ClaimInterval == 0 {
		params.ClaimInterval = DefaultClaimInterval
	}
	if params.ClaimFailureBackoff == nil {
		params.ClaimFailureBackoff = backoff.NewExponential(params.ClaimInterval, 30*params.ClaimInterval)
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Worker{
		id:                  params.ID,
		store:               params.Store,
		runner:              params.Runner,
		claimInterval:       params.ClaimInterval,
		claimFailureBackoff: params.ClaimFailureBackoff,
		clock:               params.Clock,
		status:              *atomic.NewString(WorkerStatusInit),
		stopChan:            make(chan struct{}),
		doneChan:            make(chan struct{}),
	}
}

// ID returns the id the worker claims jobs with.
func (w *Worker) ID() string {
	return w.id
}

// Start triggers the worker to start claiming jobs.
// The worker can only start once, and subsequent calls to Start will be ignored.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.setStatus(WorkerStatusStarting)
		go w.run(logger.ContextWithWorkerLogger(ctx, w.id))
	})
}

// Stop triggers the worker to stop claiming jobs.
// The worker will stop after the in-flight job is finished.
func (w *Worker) Stop() {
	w.shutdownOnce.Do(func() {
		w.setStatus(WorkerStatusStopping)
		close(w.stopChan)
	})
}

// Done is closed once a started worker stopped.
func (w *Worker) Done() <-chan struct{} {
	return w.doneChan
}

// Status returns the current status of the worker.
func (w *Worker) Status() string {
	return w.status.Load()
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneChan)
	defer w.setStatus(WorkerStatusStopped)
	w.status.CompareAndSwap(WorkerStatusStarting, WorkerStatusRunning)

	var claimFailures int
	for !w.isShuttingDown(ctx) {
		job, ok, err := w.store.ClaimPendingJob(ctx, w.id)
		if err != nil {
			claimFailures++
			WorkerClaimFaults.Add(ctx, 1)
			log.Ctx(ctx).Warn().Err(err).Int("failures", claimFailures).Msg("failed to claim pending job")
			w.claimFailureBackoff.Backoff(ctx, claimFailures)
			continue
		}
		// Reset claim failures if claiming is successful, even if no job is pending.
		claimFailures = 0

		if !ok {
			w.wait(ctx)
			continue
		}

		log.Ctx(ctx).Debug().Uint64("job_id", job.ID).Msg("claimed verification job")
		if _, err = w.runner.RunJob(ctx, job); err != nil {
			log.Ctx(ctx).Error().Err(err).Uint64("job_id", job.ID).Msg("failed to run verification job")
		}
	}
}

func (w *Worker) wait(ctx context.Context) {
	timer := w.clock.Timer(w.claimInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-w.stopChan:
	}
}

func (w *Worker) setStatus(newStatus string) {
	oldStatus := w.status.Swap(newStatus)
	if oldStatus != newStatus {
		log.Trace().Msgf("Worker status changed from %s to %s", oldStatus, newStatus)
	}
}

// isShuttingDown returns true if the worker is in the process of shutting down or has already shut down.
func (w *Worker) isShuttingDown(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return w.Status() == WorkerStatusStopping || w.Status() == WorkerStatusStopped
	}
}

// compile time check whether the Orchestrator implements the JobRunner interface.
var _ JobRunner = (*Orchestrator)(nil)
