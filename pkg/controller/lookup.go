package controller

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

// ExternalArchiveHash is the archive hash of cached runs that were not
// submitted by this service. Their run id is used as cache buster so every
// external run gets its own key.
const ExternalArchiveHash = "external"

// LookupController resolves a run id supplied by a caller. It never submits
// work: the run is served from the cache or followed on the executor until
// it is terminal. An unknown run id ends the controller with status
// RUN_ID_NOT_FOUND so callers can report which id was bad.
type LookupController struct {
	*execution
	runID string
}

func NewLookupController(params Params, runID string, observer Observer) (*LookupController, error) {
	params, err := params.withDefaults()
	if err != nil {
		return nil, err
	}
	return &LookupController{
		execution: newExecution(params, observer, models.RunProgress{RunID: runID}),
		runID:     runID,
	}, nil
}

// Run drives the controller to a terminal phase.
func (c *LookupController) Run(ctx context.Context) Outcome {
	execCtx, cancel := context.WithTimeout(ctx, c.params.Timeouts.Execution)
	defer cancel()
	c.record.RunID = c.runID
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

func (c *LookupController) run(ctx context.Context) (Outcome, error) {
	ctx = log.Ctx(ctx).With().Str("run_id", c.runID).Logger().WithContext(ctx)

	cached, err := c.params.Cache.GetRunByRunID(ctx, c.runID)
	switch {
	case err == nil:
		return c.fromCache(ctx, cached)
	case !errors.As(err, &store.ErrRunNotFound{}):
		return Outcome{}, err
	}

	info, err := c.getRun(ctx, c.runID)
	if err != nil {
		return Outcome{}, err
	}
	if info.Status == models.RunStatusRunIDNotFound {
		return c.finish(ctx, info.Status), nil
	}

	ref := models.SimulatorRef{ID: info.Simulator, Version: info.SimulatorVersion}
	sim, err := c.params.Resolver.Resolve(ctx, ref)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("simulator", ref.String()).
			Msg("simulator of run is not in the catalog, caching it without a digest")
		sim = models.Simulator{ID: info.Simulator, Version: info.SimulatorVersion}
	}

	record := models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     ExternalArchiveHash,
			SimulatorDigest: sim.Digest.String(),
			CacheBuster:     c.runID,
		},
		Simulator: sim,
		RunID:     c.runID,
		Status:    info.Status,
	}
	if record.IsTerminal() {
		// finished runs are cached once their outputs are known
		c.adopt(record, false)
		c.report(ctx)
		outcome := c.finish(ctx, record.Status)
		c.insertFinished(ctx, outcome.Record)
		return outcome, nil
	}

	inserted, err := c.params.Cache.InsertRun(ctx, record)
	switch {
	case err == nil:
		c.adopt(inserted, true)
	case errors.As(err, &store.ErrRunAlreadyExists{}):
		log.Ctx(ctx).Warn().Msg("run was cached concurrently, following it uncached")
		c.adopt(record, false)
	default:
		return Outcome{}, err
	}
	c.report(ctx)

	status, err := c.poll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return c.finish(ctx, status), nil
}

func (c *LookupController) insertFinished(ctx context.Context, record models.RunRecord) {
	if record.Status == models.RunStatusSucceeded && record.Outputs == nil {
		return
	}
	if _, err := c.params.Cache.InsertRun(ctx, record); err != nil && !errors.As(err, &store.ErrRunAlreadyExists{}) {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to cache finished run")
	}
}

// fromCache serves a run that is already known to the cache.
func (c *LookupController) fromCache(ctx context.Context, cached models.RunRecord) (Outcome, error) {
	switch {
	case cached.IsUsable():
		c.adopt(cached, false)
		c.progress.Cached = true
		return c.done(ctx), nil
	case cached.IsTerminal():
		// terminal records are immutable, the outcome is recomputed without
		// writing it back
		c.adopt(cached, false)
		c.report(ctx)
		return c.finish(ctx, cached.Status), nil
	default:
		c.adopt(cached, true)
		c.report(ctx)
		status, err := c.poll(ctx)
		if err != nil {
			return Outcome{}, err
		}
		return c.finish(ctx, status), nil
	}
}
