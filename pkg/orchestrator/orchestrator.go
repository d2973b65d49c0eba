package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/contentcache"
	"github.com/bacalhau-project/simverify/pkg/controller"
	"github.com/bacalhau-project/simverify/pkg/lib/validate"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
	"github.com/bacalhau-project/simverify/pkg/store"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultDatasetTimeout    = 5 * time.Minute
)

type OrchestratorParams struct {
	Store   store.Store
	Cache   *contentcache.Cache
	Results simclient.ResultsService
	// ControllerParams are shared by every run controller.
	ControllerParams controller.Params
	// MaxConcurrentControllers bounds the controllers of one job running at
	// once. Zero means no limit.
	MaxConcurrentControllers int
	// HeartbeatInterval is how often a running job reports that its worker is alive.
	HeartbeatInterval time.Duration
	// DatasetTimeout bounds the download of one dataset.
	DatasetTimeout time.Duration
	// Clock is the clock used for time-based operations.
	// If not provided, the system clock is used.
	Clock clock.Clock
}

// Orchestrator persists verification jobs and runs them: it fans a job out
// to one run controller per requested simulator or run id, waits for all of
// them, and compares the outputs of the successful runs.
type Orchestrator struct {
	store             store.Store
	cache             *contentcache.Cache
	results           simclient.ResultsService
	controllerParams  controller.Params
	maxConcurrent     int
	heartbeatInterval time.Duration
	datasetTimeout    time.Duration
	clock             clock.Clock

	// running holds the cancel functions of the jobs run by this process.
	running   map[uint64]context.CancelFunc
	runningMu sync.Mutex
}

func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.HeartbeatInterval == 0 {
		params.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if params.DatasetTimeout == 0 {
		params.DatasetTimeout = DefaultDatasetTimeout
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.ControllerParams.Clock == nil {
		params.ControllerParams.Clock = params.Clock
	}

	err := errors.Join(
		validate.NotNil(params.Store, "store cannot be nil"),
		validate.NotNil(params.Cache, "content cache cannot be nil"),
		validate.NotNil(params.Results, "results service cannot be nil"),
		validate.IsGreaterOrEqualToZero(params.MaxConcurrentControllers, "max concurrent controllers cannot be negative"),
	)
	if err != nil {
		return nil, fmt.Errorf("error validating orchestrator params: %w", err)
	}

	return &Orchestrator{
		store:             params.Store,
		cache:             params.Cache,
		results:           params.Results,
		controllerParams:  params.ControllerParams,
		maxConcurrent:     params.MaxConcurrentControllers,
		heartbeatInterval: params.HeartbeatInterval,
		datasetTimeout:    params.DatasetTimeout,
		clock:             params.Clock,
		running:           make(map[uint64]context.CancelFunc),
	}, nil
}

// UploadArchive stores an archive in the content cache. Uploading identical
// bytes again returns the existing archive.
func (o *Orchestrator) UploadArchive(ctx context.Context, filename string, content []byte) (models.Archive, error) {
	return o.cache.LookupOrCreateArchive(ctx, filename, content)
}

// StartVerification persists a job that runs a stored archive with every
// requested simulator and compares their outputs. It returns the job id.
func (o *Orchestrator) StartVerification(ctx context.Context, params models.JobParams) (uint64, error) {
	params = params.Copy()
	params.Normalize()
	if err := params.Validate(models.JobKindArchive); err != nil {
		return 0, err
	}
	if _, err := o.cache.GetArchive(ctx, params.ArchiveHash); err != nil {
		return 0, err
	}
	return o.createJob(ctx, models.JobKindArchive, params)
}

// StartRunComparison persists a job that compares runs executed earlier. It
// returns the job id.
func (o *Orchestrator) StartRunComparison(ctx context.Context, runIDs []string, params models.JobParams) (uint64, error) {
	params = params.Copy()
	params.RunIDs = append([]string(nil), runIDs...)
	params.Normalize()
	if err := params.Validate(models.JobKindRuns); err != nil {
		return 0, err
	}
	return o.createJob(ctx, models.JobKindRuns, params)
}

func (o *Orchestrator) createJob(ctx context.Context, kind models.JobKind, params models.JobParams) (uint64, error) {
	job, err := o.store.CreateJob(ctx, models.VerificationJob{
		Kind:   kind,
		Params: params,
		State:  models.JobStatePending,
		Runs:   models.NewRunProgress(kind, params),
	})
	if err != nil {
		return 0, fmt.Errorf("persisting verification job: %w", err)
	}
	jobsSubmitted.Add(ctx, 1, jobKindAttribute(kind))
	log.Ctx(ctx).Info().
		Uint64("job_id", job.ID).
		Str("kind", string(kind)).
		Int("runs", len(job.Runs)).
		Msg("verification job submitted")
	return job.ID, nil
}

// GetVerificationStatus returns the last committed state of a job. It never
// waits for running controllers.
func (o *Orchestrator) GetVerificationStatus(ctx context.Context, jobID uint64) (models.VerificationJob, error) {
	return o.store.GetJob(ctx, jobID)
}

// Cancel fails a job that is not terminal yet. A running job has its
// controllers stopped; runs already started on the executor keep running
// there.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uint64) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return store.NewErrJobAlreadyTerminal(jobID, job.State, models.JobStateFailed)
	}

	update := job.Copy()
	update.State = models.JobStateFailed
	update.Error = CancelledMessage
	if _, err = o.store.UpdateJob(ctx, store.UpdateJobRequest{
		JobID:     jobID,
		NewValues: update,
	}); err != nil {
		return err
	}
	jobsFinished.Add(ctx, 1, jobFinishedAttributes(job.Kind, models.JobStateFailed))
	log.Ctx(ctx).Info().Uint64("job_id", jobID).Stringer("previous_state", job.State).Msg("verification job cancelled")

	o.runningMu.Lock()
	cancel, ok := o.running[jobID]
	o.runningMu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (o *Orchestrator) register(jobID uint64, cancel context.CancelFunc) {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	o.running[jobID] = cancel
}

func (o *Orchestrator) unregister(jobID uint64) {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	delete(o.running, jobID)
}
