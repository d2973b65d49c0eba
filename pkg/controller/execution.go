package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
	"github.com/bacalhau-project/simverify/pkg/store"
)

// execution holds the state shared by both controller kinds while they poll a
// run and finish it.
type execution struct {
	params   Params
	observer Observer
	progress models.RunProgress
	record   models.RunRecord
	// owned is set when record is stored in the cache and this controller
	// writes its status changes.
	owned bool
}

func newExecution(params Params, observer Observer, progress models.RunProgress) *execution {
	if observer == nil {
		observer = NoopObserver{}
	}
	progress.Phase = models.PhaseInit
	return &execution{
		params:   params,
		observer: observer,
		progress: progress,
	}
}

func (e *execution) report(ctx context.Context) {
	e.observer.OnProgress(ctx, e.progress)
}

func (e *execution) setPhase(ctx context.Context, phase models.Phase) {
	e.progress.Phase = phase
	e.report(ctx)
}

// adopt takes the record as the run this controller follows.
func (e *execution) adopt(record models.RunRecord, owned bool) {
	e.record = record
	e.owned = owned
	e.progress.Simulator = record.Simulator.Ref()
	e.progress.RunID = record.RunID
	e.progress.Status = record.Status
}

// getRun fetches the run status, retrying transient failures with backoff.
// An unknown run id is reported as RUN_ID_NOT_FOUND, not as an error.
func (e *execution) getRun(ctx context.Context, runID string) (models.RunInfo, error) {
	for attempt := 1; ; attempt++ {
		pollCtx, cancel := context.WithTimeout(ctx, e.params.Timeouts.Poll)
		info, err := e.params.Executor.GetRun(pollCtx, runID)
		cancel()
		if err == nil {
			return info, nil
		}
		if simclient.IsNotFound(err) {
			return models.RunInfo{RunID: runID, Status: models.RunStatusRunIDNotFound}, nil
		}
		if ctx.Err() != nil {
			return models.RunInfo{}, ctx.Err()
		}
		if !simclient.IsTransient(err) {
			return models.RunInfo{}, fmt.Errorf("polling run %s: %w", runID, err)
		}
		if attempt >= e.params.MaxTransientAttempts {
			return models.RunInfo{}, NewErrRetriesExhausted(runID, attempt, err)
		}
		log.Ctx(ctx).Warn().Err(err).
			Str("run_id", runID).
			Int("attempt", attempt).
			Msg("transient failure polling run, backing off")
		e.params.Backoff.Backoff(ctx, attempt)
	}
}

// poll waits until the followed run reaches a terminal status.
func (e *execution) poll(ctx context.Context) (models.RunStatus, error) {
	e.setPhase(ctx, models.PhasePolling)
	for {
		e.observer.OnHeartbeat(ctx)
		info, err := e.getRun(ctx, e.record.RunID)
		if err != nil {
			return models.RunStatusUndefined, err
		}
		e.updateStatus(ctx, info.Status)
		if info.Status.IsTerminal() {
			return info.Status, nil
		}

		timer := e.params.Clock.Timer(e.params.Timeouts.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return models.RunStatusUndefined, ctx.Err()
		}
	}
}

// updateStatus records a non-terminal status change. Terminal statuses are
// written by finish together with their outputs.
func (e *execution) updateStatus(ctx context.Context, status models.RunStatus) {
	if status == e.record.Status {
		return
	}
	e.record.Status = status
	e.progress.Status = status
	e.report(ctx)
	if !e.owned || status.IsTerminal() {
		return
	}
	updated, err := e.params.Cache.UpdateRun(ctx, e.record.Key, models.RunRecord{Status: status})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("run_id", e.record.RunID).Msg("failed to record run status")
		return
	}
	e.record = updated
}

// finish turns the terminal status of the followed run into an outcome.
func (e *execution) finish(ctx context.Context, status models.RunStatus) Outcome {
	e.record.Status = status
	e.progress.Status = status
	switch status {
	case models.RunStatusSucceeded:
		return e.finishSucceeded(ctx)
	case models.RunStatusRunIDNotFound:
		e.persistTerminal(ctx, models.RunRecord{Status: status, Error: "run id not found"})
		return e.fail(ctx, simclient.NewErrRunIDNotFound(e.record.RunID))
	default:
		e.persistTerminal(ctx, models.RunRecord{Status: status})
		return e.fail(ctx, NewErrRunFailed(e.record.RunID, status, e.record.Error))
	}
}

func (e *execution) finishSucceeded(ctx context.Context) Outcome {
	metaCtx, cancel := context.WithTimeout(ctx, e.params.Timeouts.Metadata)
	defer cancel()
	metadata, err := e.params.Results.GetMetadata(metaCtx, e.record.RunID)
	if err != nil {
		return e.fail(ctx, fmt.Errorf("fetching outputs of run %s: %w", e.record.RunID, err))
	}
	e.record.Outputs = &metadata

	if e.owned {
		updated, err := e.params.Cache.UpdateRun(ctx, e.record.Key, models.RunRecord{
			Status:  models.RunStatusSucceeded,
			Outputs: &metadata,
		})
		switch {
		case err == nil:
			e.record = updated
		case errors.As(err, &store.ErrRunAlreadyTerminal{}):
			// another controller following the same run finished first
			log.Ctx(ctx).Debug().Str("run_id", e.record.RunID).Msg("run already finished by another controller")
		default:
			return e.fail(ctx, fmt.Errorf("caching run %s: %w", e.record.RunID, err))
		}
	}
	return e.done(ctx)
}

// persistTerminal writes a failed terminal status. Failures only log since
// the outcome is already decided.
func (e *execution) persistTerminal(ctx context.Context, newValues models.RunRecord) {
	if !e.owned {
		return
	}
	updated, err := e.params.Cache.UpdateRun(ctx, e.record.Key, newValues)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("run_id", e.record.RunID).Msg("failed to record terminal run status")
		return
	}
	e.record = updated
}

func (e *execution) done(ctx context.Context) Outcome {
	e.progress.Error = ""
	e.setPhase(ctx, models.PhaseDone)
	return Outcome{Progress: e.progress, Record: e.record}
}

func (e *execution) fail(ctx context.Context, err error) Outcome {
	e.progress.Error = err.Error()
	e.setPhase(ctx, models.PhaseFailed)
	log.Ctx(ctx).Debug().Err(err).Str("run_id", e.record.RunID).Msg("controller failed")
	return Outcome{Progress: e.progress, Record: e.record, Err: err}
}

// interrupted maps a context error of the execution context to the error
// reported by the controller.
func (e *execution) interrupted(parent, execCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return NewErrExecutionTimeout(e.record.RunID, e.params.Timeouts.Execution)
	}
	return err
}
