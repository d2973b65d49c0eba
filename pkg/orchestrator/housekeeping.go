package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/bacalhau-project/simverify/pkg/lib/validate"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

type HousekeepingParams struct {
	Store store.Store
	// Interval is the interval at which housekeeping tasks are run
	Interval time.Duration
	// HeartbeatTimeout is how long an in progress job may go without a
	// heartbeat before it is considered abandoned by a crashed worker.
	HeartbeatTimeout time.Duration
	// Clock is the clock used for time-based operations.
	// If not provided, the system clock is used.
	Clock clock.Clock
}

// Housekeeping fails jobs whose worker stopped heartbeating.
type Housekeeping struct {
	store            store.Store
	interval         time.Duration
	heartbeatTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
	running   atomic.Bool
	clock     clock.Clock
}

func NewHousekeeping(params HousekeepingParams) (*Housekeeping, error) {
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	// validate params
	err := errors.Join(
		validate.NotNil(params.Store, "store cannot be nil"),
		validate.IsGreaterThanZero(params.Interval, "interval must be greater than zero"),
		validate.IsGreaterThanZero(params.HeartbeatTimeout, "heartbeat timeout must be greater than zero"),
	)
	if err != nil {
		return nil, fmt.Errorf("error validating housekeeping params: %w", err)
	}

	return &Housekeeping{
		store:            params.Store,
		interval:         params.Interval,
		heartbeatTimeout: params.HeartbeatTimeout,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
		clock:            params.Clock,
	}, nil
}

// IsRunning returns true if the housekeeping task is running
func (h *Housekeeping) IsRunning() bool {
	return h.running.Load()
}

// Start starts the housekeeping task
func (h *Housekeeping) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		h.running.Store(true)
		go h.runHousekeepingTasks(ctx)
	})
}

// Stop stops the housekeeping task and waits for an in-flight pass to
// complete, or until the context is done.
func (h *Housekeeping) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if !h.IsRunning() {
			return
		}
		select {
		case <-h.doneChan:
		case <-ctx.Done():
		}
	})
}

func (h *Housekeeping) runHousekeepingTasks(ctx context.Context) {
	defer close(h.doneChan)
	defer h.running.Store(false)
	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.FailAbandonedJobs(ctx)
		case <-ctx.Done():
			log.Ctx(ctx).Debug().Msg("Context cancelled, stopping housekeeping task")
			return
		case <-h.stopChan:
			log.Ctx(ctx).Debug().Msg("Stop channel closed, stopping housekeeping task")
			return
		}
	}
}

// FailAbandonedJobs fails every in progress job whose last heartbeat is
// older than the heartbeat timeout. It returns the number of failed jobs.
func (h *Housekeeping) FailAbandonedJobs(ctx context.Context) int {
	jobs, err := h.store.GetInProgressJobs(ctx)
	if err != nil {
		log.Ctx(ctx).Err(err).Msg("failed to get in progress jobs")
		return 0
	}

	expiration := h.clock.Now().Add(-h.heartbeatTimeout)
	failed := 0
	for _, job := range jobs {
		lastSeen := job.HeartbeatTime
		if lastSeen.IsZero() {
			lastSeen = job.StartTime
		}
		if !lastSeen.Before(expiration) {
			continue
		}

		update := job.Copy()
		update.State = models.JobStateFailed
		update.Error = fmt.Sprintf("worker %s stopped heartbeating, last heartbeat at %s",
			job.WorkerID, lastSeen.UTC().Format(time.RFC3339))
		_, err = h.store.UpdateJob(ctx, store.UpdateJobRequest{
			JobID: job.ID,
			Condition: store.UpdateJobCondition{
				ExpectedState:    models.JobStateInProgress,
				ExpectedRevision: job.Revision,
			},
			NewValues: update,
		})
		if err != nil {
			// the job moved on since it was read, a live worker owns it
			log.Ctx(ctx).Debug().Err(err).Uint64("job_id", job.ID).Msg("skipping abandoned job")
			continue
		}
		failed++
		jobsFinished.Add(ctx, 1, jobFinishedAttributes(job.Kind, models.JobStateFailed))
		log.Ctx(ctx).Warn().Uint64("job_id", job.ID).Str("worker_id", job.WorkerID).Msg("failed abandoned verification job")
	}
	return failed
}
