package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bacalhau-project/simverify/pkg/controller"
	"github.com/bacalhau-project/simverify/pkg/logger"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/telemetry"
)

// errAbort stops the sibling controllers of a job with the abort policy.
type errAbort struct {
	index int
}

func (e errAbort) Error() string {
	return fmt.Sprintf("controller %d failed", e.index)
}

// RunJob runs a claimed job to a terminal state. It returns the job as
// finally persisted.
func (o *Orchestrator) RunJob(ctx context.Context, job models.VerificationJob) (models.VerificationJob, error) {
	ctx = logger.ContextWithJobLogger(ctx, job.ID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(job.ID, cancel)
	defer o.unregister(job.ID)

	// a cancellation may have landed between the claim and the registration
	if current, err := o.store.GetJob(ctx, job.ID); err == nil && current.IsTerminal() {
		log.Ctx(ctx).Debug().Stringer("state", current.State).Msg("job finished before it started running")
		return current, nil
	}

	log.Ctx(ctx).Info().Str("kind", string(job.Kind)).Int("runs", len(job.Runs)).Msg("running verification job")
	tracker := newProgressTracker(o.store, job, cancel)
	stopHeartbeat := o.startHeartbeat(ctx, tracker)
	defer stopHeartbeat()

	state, message, results := o.execute(ctx, job, tracker)
	if ctx.Err() != nil && state != models.JobStateCompleted {
		state, message, results = models.JobStateFailed, fmt.Sprintf("job interrupted: %s", ctx.Err()), nil
	}

	// the job context may be cancelled, the final write must still happen
	final, err := tracker.finish(telemetry.NewDetachedContext(ctx), state, message, results)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("verification job was finished elsewhere")
		return o.store.GetJob(telemetry.NewDetachedContext(ctx), job.ID)
	}
	jobsFinished.Add(ctx, 1, jobFinishedAttributes(job.Kind, state))
	log.Ctx(ctx).Info().Stringer("state", state).Str("error", message).Msg("verification job finished")
	return final, nil
}

// startHeartbeat reports liveness of the job until the returned function is called.
func (o *Orchestrator) startHeartbeat(ctx context.Context, tracker *progressTracker) func() {
	ticker := o.clock.Ticker(o.heartbeatInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				tracker.heartbeat(ctx)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

// execute runs every controller of the job and aggregates their outcomes.
func (o *Orchestrator) execute(
	ctx context.Context, job models.VerificationJob, tracker *progressTracker,
) (models.JobState, string, *models.ComparisonResults) {
	var archive models.Archive
	if job.Kind == models.JobKindArchive {
		var err error
		if archive, err = o.cache.GetArchive(ctx, job.Params.ArchiveHash); err != nil {
			return models.JobStateFailed, err.Error(), nil
		}
	}

	policy := job.Params.FailurePolicy.Resolve(job.Kind)
	outcomes := make([]controller.Outcome, len(job.Runs))
	g, gctx := errgroup.WithContext(ctx)
	if o.maxConcurrent > 0 {
		g.SetLimit(o.maxConcurrent)
	}
	for i := range job.Runs {
		i := i
		g.Go(func() error {
			outcome := o.runController(gctx, job, archive, i, runObserver{tracker: tracker, index: i})
			outcomes[i] = outcome
			controllerOutcomes.Add(ctx, 1, outcomeAttributes(outcome.Progress))
			if !outcome.Succeeded() && policy == models.FailurePolicyAbort {
				return errAbort{index: i}
			}
			return nil
		})
	}

	var abort errAbort
	if err := g.Wait(); errors.As(err, &abort) {
		failed := outcomes[abort.index]
		if failed.NotFound() {
			return models.JobStateRunIDNotFound, failed.Progress.Error, nil
		}
		return models.JobStateFailed, failed.Progress.Error, nil
	}
	if ctx.Err() != nil {
		return models.JobStateFailed, ctx.Err().Error(), nil
	}
	return o.aggregate(ctx, job, policy, outcomes)
}

func (o *Orchestrator) runController(
	ctx context.Context, job models.VerificationJob, archive models.Archive, index int, observer runObserver,
) controller.Outcome {
	var (
		c interface {
			Run(context.Context) controller.Outcome
		}
		err error
	)
	switch job.Kind {
	case models.JobKindArchive:
		ref := job.Params.Simulators[index]
		ctx = logger.ContextWithSimulatorLogger(ctx, ref.String())
		c, err = controller.NewSubmissionController(o.controllerParams, controller.SubmissionRequest{
			Archive:     archive,
			Simulator:   ref,
			CacheBuster: job.Params.CacheBuster,
			Name:        fmt.Sprintf("%s (job %d)", archive.Filename, job.ID),
		}, observer)
	default:
		c, err = controller.NewLookupController(o.controllerParams, job.Params.RunIDs[index], observer)
	}
	if err != nil {
		progress := job.Runs[index]
		progress.Phase = models.PhaseFailed
		progress.Error = err.Error()
		observer.OnProgress(ctx, progress)
		return controller.Outcome{Progress: progress, Err: err}
	}
	return c.Run(ctx)
}

// aggregate compares the successful runs of a job. Failed runs are skipped
// under the exclude policy; the abort policy has already short-circuited.
func (o *Orchestrator) aggregate(
	ctx context.Context, job models.VerificationJob, policy models.FailurePolicy, outcomes []controller.Outcome,
) (models.JobState, string, *models.ComparisonResults) {
	var (
		succeeded []controller.Outcome
		skipped   []models.SkippedRun
	)
	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			succeeded = append(succeeded, outcome)
			continue
		}
		skipped = append(skipped, skippedRun(outcome.Progress, outcome.Progress.Error))
	}
	if len(succeeded) == 0 {
		return models.JobStateFailed, NewErrNoSuccessfulRuns(job.ID, firstError(outcomes)).Error(), nil
	}

	fetched := o.fetchRunData(ctx, succeeded)
	runs := make([]runData, 0, len(fetched))
	for _, f := range fetched {
		if f.err == nil {
			runs = append(runs, f)
			continue
		}
		if policy == models.FailurePolicyAbort {
			return models.JobStateFailed, f.err.Error(), nil
		}
		log.Ctx(ctx).Warn().Err(f.err).Str("run_id", f.outcome.Record.RunID).Msg("excluding run without datasets")
		skipped = append(skipped, skippedRun(f.outcome.Progress, f.err.Error()))
	}
	if len(runs) == 0 {
		return models.JobStateFailed, NewErrNoSuccessfulRuns(job.ID, skipped[0].Reason).Error(), nil
	}

	results := o.compare(ctx, job.Params, runs)
	results.Skipped = skipped
	return models.JobStateCompleted, "", results
}

func skippedRun(progress models.RunProgress, reason string) models.SkippedRun {
	status := progress.Status
	if status.IsUndefined() || !status.IsTerminal() {
		status = models.RunStatusFailed
	}
	return models.SkippedRun{
		Simulator: progress.Simulator.String(),
		RunID:     progress.RunID,
		Status:    status,
		Reason:    reason,
	}
}

func firstError(outcomes []controller.Outcome) string {
	for _, o := range outcomes {
		if o.Progress.Error != "" {
			return o.Progress.Error
		}
	}
	return "no runs"
}
