package controller

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
	"github.com/bacalhau-project/simverify/pkg/store"
)

// SubmissionRequest asks for the outputs of one archive run by one simulator.
type SubmissionRequest struct {
	Archive   models.Archive
	Simulator models.SimulatorRef
	// CacheBuster forces a new execution when it differs from earlier runs.
	CacheBuster string
	// Name is the run name shown by the executor. Defaults to the archive filename.
	Name string
}

// SubmissionController drives one simulator run of an archive:
//
//	INIT -> DONE                               (cache hit)
//	INIT -> SUBMITTING -> POLLING -> DONE|FAILED
//
// A cached run that is still in flight is adopted and polled instead of
// being submitted again. A cached run that failed is evicted and retried.
type SubmissionController struct {
	*execution
	request SubmissionRequest
}

func NewSubmissionController(params Params, request SubmissionRequest, observer Observer) (*SubmissionController, error) {
	params, err := params.withDefaults()
	if err != nil {
		return nil, err
	}
	return &SubmissionController{
		execution: newExecution(params, observer, models.RunProgress{Simulator: request.Simulator}),
		request:   request,
	}, nil
}

// Run drives the controller to a terminal phase. It never returns without an
// outcome; failures are reported in Outcome.Err.
func (c *SubmissionController) Run(ctx context.Context) Outcome {
	execCtx, cancel := context.WithTimeout(ctx, c.params.Timeouts.Execution)
	defer cancel()
	c.report(execCtx)

	outcome, err := c.run(execCtx)
	if err != nil {
		if execCtx.Err() != nil {
			err = c.interrupted(ctx, execCtx, err)
		}
		return c.fail(ctx, err)
	}
	return outcome
}

func (c *SubmissionController) run(ctx context.Context) (Outcome, error) {
	sim, err := c.params.Resolver.Resolve(ctx, c.request.Simulator)
	if err != nil {
		return Outcome{}, err
	}
	c.progress.Simulator = sim.Ref()
	c.record = models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     c.request.Archive.Hash,
			SimulatorDigest: sim.Digest.String(),
			CacheBuster:     c.request.CacheBuster,
		},
		Simulator: sim,
	}
	ctx = log.Ctx(ctx).With().Str("simulator", sim.String()).Logger().WithContext(ctx)

	existing, err := c.params.Cache.LookupRun(ctx, c.record.Key)
	if err != nil {
		return Outcome{}, err
	}
	switch {
	case existing == nil:
		if err = c.submit(ctx, sim); err != nil {
			return Outcome{}, err
		}
	case existing.IsUsable():
		log.Ctx(ctx).Debug().Str("run_id", existing.RunID).Msg("serving run from cache")
		c.adopt(*existing, false)
		c.progress.Cached = true
		return c.done(ctx), nil
	case existing.IsTerminal():
		log.Ctx(ctx).Info().
			Str("run_id", existing.RunID).
			Stringer("status", existing.Status).
			Msg("cached run is unusable, running again")
		if err = c.params.Cache.EvictRun(ctx, existing.Key); err != nil && !errors.As(err, &store.ErrRunNotFound{}) {
			return Outcome{}, err
		}
		if err = c.submit(ctx, sim); err != nil {
			return Outcome{}, err
		}
	default:
		log.Ctx(ctx).Debug().Str("run_id", existing.RunID).Msg("following in flight cached run")
		c.adopt(*existing, true)
		c.report(ctx)
	}

	status, err := c.poll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return c.finish(ctx, status), nil
}

// submit makes the single submission attempt of the controller and caches
// the new run. Losing the insert race to another controller leaves this run
// uncached.
func (c *SubmissionController) submit(ctx context.Context, sim models.Simulator) error {
	c.setPhase(ctx, models.PhaseSubmitting)
	content, err := c.params.Cache.GetArchiveContent(ctx, c.request.Archive)
	if err != nil {
		return err
	}

	name := c.request.Name
	if name == "" {
		name = c.request.Archive.Filename
	}
	submitCtx, cancel := context.WithTimeout(ctx, c.params.Timeouts.Submit)
	defer cancel()
	info, err := c.params.Executor.Submit(submitCtx, simclient.SubmitRequest{
		Name:      name,
		Filename:  c.request.Archive.Filename,
		Archive:   content,
		Simulator: sim,
	})
	if err != nil {
		return NewErrSubmissionFailed(sim, err)
	}

	record := c.record
	record.RunID = info.RunID
	record.Status = info.Status
	if record.Status.IsUndefined() {
		record.Status = models.RunStatusQueued
	}
	inserted, err := c.params.Cache.InsertRun(ctx, record)
	switch {
	case err == nil:
		c.adopt(inserted, true)
	case errors.As(err, &store.ErrRunAlreadyExists{}):
		log.Ctx(ctx).Error().
			Str("key", record.Key.String()).
			Str("run_id", record.RunID).
			Msg("another controller cached a run under the same key, following this run uncached")
		c.adopt(record, false)
	default:
		log.Ctx(ctx).Error().Err(err).
			Str("run_id", record.RunID).
			Msg("failed to cache submitted run, following it uncached")
		c.adopt(record, false)
	}
	c.report(ctx)
	return nil
}
