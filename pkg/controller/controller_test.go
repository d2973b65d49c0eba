//go:build unit || !integration

package controller_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/blob/local"
	"github.com/bacalhau-project/simverify/pkg/cache/basic"
	"github.com/bacalhau-project/simverify/pkg/catalog"
	"github.com/bacalhau-project/simverify/pkg/contentcache"
	"github.com/bacalhau-project/simverify/pkg/controller"
	"github.com/bacalhau-project/simverify/pkg/lib/backoff"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
	"github.com/bacalhau-project/simverify/pkg/simclient/fake"
	"github.com/bacalhau-project/simverify/pkg/store"
	"github.com/bacalhau-project/simverify/pkg/store/inmemory"
)

var (
	copasi    = models.Simulator{ID: "copasi", Version: "4.40.0", Digest: digest.FromString("copasi")}
	tellurium = models.Simulator{ID: "tellurium", Version: "2.2.1", Digest: digest.FromString("tellurium")}
	report    = models.Dataset{
		Name:   "report",
		Shape:  []int{2, 3},
		Labels: []string{"time", "A"},
		Values: [][]float64{{0, 1, 2}, {1, 0.5, 0.25}},
	}
)

// recorder records every notification of a controller.
type recorder struct {
	mu         sync.Mutex
	progress   []models.RunProgress
	heartbeats int
}

func (r *recorder) OnProgress(_ context.Context, p models.RunProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnHeartbeat(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
}

func (r *recorder) phases() []models.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Phase
	for _, p := range r.progress {
		if len(out) == 0 || out[len(out)-1] != p.Phase {
			out = append(out, p.Phase)
		}
	}
	return out
}

// unseenRuns hides stored runs from lookups, as if another controller
// inserted them right after this controller looked.
type unseenRuns struct {
	store.Store
}

func (unseenRuns) FindRuns(context.Context, models.RunKey) ([]models.RunRecord, error) {
	return nil, nil
}

func (unseenRuns) GetRunByRunID(_ context.Context, runID string) (models.RunRecord, error) {
	return models.RunRecord{}, store.NewErrRunNotFound(runID)
}

type ControllerTestSuite struct {
	suite.Suite
	ctx     context.Context
	service *fake.Service
	cache   *contentcache.Cache
	params  controller.Params
	archive models.Archive
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.service = fake.NewService(copasi, tellurium)
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{
		Polls:       2,
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})

	blobStore, err := local.NewStore(s.T().TempDir())
	s.Require().NoError(err)
	s.cache = contentcache.New(contentcache.Params{Store: inmemory.NewInMemoryStore(), Blob: blobStore})
	s.archive, err = s.cache.LookupOrCreateArchive(s.ctx, "model.omex", []byte("PK sbml"))
	s.Require().NoError(err)

	listing, err := basic.NewCache[[]models.Simulator]()
	s.Require().NoError(err)
	s.T().Cleanup(listing.Close)

	s.params = controller.Params{
		Cache:    s.cache,
		Resolver: catalog.NewResolver(catalog.ResolverParams{Catalog: s.service, Cache: listing}),
		Executor: s.service,
		Results:  s.service,
		Backoff:  backoff.NewNoop(),
		Timeouts: controller.Timeouts{PollInterval: time.Millisecond},
	}
}

func (s *ControllerTestSuite) submit(ref models.SimulatorRef, cacheBuster string) (controller.Outcome, *recorder) {
	rec := &recorder{}
	c, err := controller.NewSubmissionController(s.params, controller.SubmissionRequest{
		Archive:     s.archive,
		Simulator:   ref,
		CacheBuster: cacheBuster,
	}, rec)
	s.Require().NoError(err)
	return c.Run(s.ctx), rec
}

func (s *ControllerTestSuite) lookup(runID string) controller.Outcome {
	c, err := controller.NewLookupController(s.params, runID, nil)
	s.Require().NoError(err)
	return c.Run(s.ctx)
}

func (s *ControllerTestSuite) TestInvalidParams() {
	_, err := controller.NewSubmissionController(controller.Params{}, controller.SubmissionRequest{}, nil)
	s.Error(err)
	_, err = controller.NewLookupController(controller.Params{Cache: s.cache}, "run-1", nil)
	s.Error(err)
}

func (s *ControllerTestSuite) TestSubmitAndPollUntilSucceeded() {
	outcome, rec := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().NoError(outcome.Err)
	s.True(outcome.Succeeded())
	s.False(outcome.Progress.Cached)
	s.Equal(copasi.Ref(), outcome.Progress.Simulator)
	s.Equal("run-1", outcome.Record.RunID)
	s.Equal(models.RunStatusSucceeded, outcome.Record.Status)
	s.Require().NotNil(outcome.Record.Outputs)
	s.Equal([]string{"report"}, outcome.Record.Outputs.DatasetNames())

	s.Equal([]models.Phase{models.PhaseInit, models.PhaseSubmitting, models.PhasePolling, models.PhaseDone}, rec.phases())
	s.Equal(3, rec.heartbeats)
	s.Equal(1, s.service.Submissions())

	cached, err := s.cache.LookupRun(s.ctx, outcome.Record.Key)
	s.Require().NoError(err)
	s.Require().NotNil(cached)
	s.True(cached.IsUsable())
	s.Equal("run-1", cached.RunID)
}

func (s *ControllerTestSuite) TestCacheHitSkipsSubmission() {
	first, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().True(first.Succeeded())

	second, rec := s.submit(models.SimulatorRef{ID: "copasi", Version: "4.40.0"}, "")
	s.Require().NoError(second.Err)
	s.True(second.Progress.Cached)
	s.Equal(first.Record.RunID, second.Record.RunID)
	s.Equal([]models.Phase{models.PhaseInit, models.PhaseDone}, rec.phases())
	s.Equal(1, s.service.Submissions())
}

func (s *ControllerTestSuite) TestCacheBusterForcesNewRun() {
	first, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().True(first.Succeeded())

	second, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "again")
	s.Require().True(second.Succeeded())
	s.False(second.Progress.Cached)
	s.NotEqual(first.Record.RunID, second.Record.RunID)
	s.Equal(2, s.service.Submissions())
}

func (s *ControllerTestSuite) TestSubmissionFailureIsNotRetried() {
	s.service.SetBehaviour(tellurium.ID, fake.Behaviour{
		SubmitErr: simclient.NewErrUnexpectedStatus("executor: submitting run", http.StatusBadGateway, ""),
	})
	outcome, _ := s.submit(models.SimulatorRef{ID: "tellurium"}, "")
	s.False(outcome.Succeeded())
	s.Equal(models.PhaseFailed, outcome.Progress.Phase)
	s.ErrorAs(outcome.Err, &controller.ErrSubmissionFailed{})
	s.Contains(outcome.Progress.Error, "502")
	s.Equal(1, s.service.Submissions())

	cached, err := s.cache.LookupRun(s.ctx, outcome.Record.Key)
	s.Require().NoError(err)
	s.Nil(cached)
}

func (s *ControllerTestSuite) TestFailedRunIsEvictedAndResubmitted() {
	s.service.SetBehaviour(tellurium.ID, fake.Behaviour{FinalStatus: models.RunStatusFailed})
	failed, _ := s.submit(models.SimulatorRef{ID: "tellurium"}, "")
	s.Require().False(failed.Succeeded())
	var runErr controller.ErrRunFailed
	s.Require().ErrorAs(failed.Err, &runErr)
	s.Equal(models.RunStatusFailed, runErr.Status)

	cached, err := s.cache.LookupRun(s.ctx, failed.Record.Key)
	s.Require().NoError(err)
	s.Require().NotNil(cached)
	s.Equal(models.RunStatusFailed, cached.Status)

	s.service.SetBehaviour(tellurium.ID, fake.Behaviour{
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})
	retried, _ := s.submit(models.SimulatorRef{ID: "tellurium"}, "")
	s.Require().NoError(retried.Err)
	s.Equal(2, s.service.Submissions())
	s.NotEqual(failed.Record.RunID, retried.Record.RunID)
}

func (s *ControllerTestSuite) TestFollowsInFlightCachedRun() {
	key := models.RunKey{ArchiveHash: s.archive.Hash, SimulatorDigest: copasi.Digest.String()}
	_, err := s.cache.InsertRun(s.ctx, models.RunRecord{
		Key:       key,
		Simulator: copasi,
		RunID:     "ext-1",
		Status:    models.RunStatusRunning,
	})
	s.Require().NoError(err)
	s.service.AddRun("ext-1", copasi, fake.Behaviour{
		Polls:       1,
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})

	outcome, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().NoError(outcome.Err)
	s.Equal("ext-1", outcome.Record.RunID)
	s.Zero(s.service.Submissions())

	cached, err := s.cache.LookupRun(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(cached)
	s.True(cached.IsUsable())
}

func (s *ControllerTestSuite) TestTransientPollErrorsAreRetried() {
	unavailable := simclient.NewErrUnexpectedStatus("executor: getting run", http.StatusServiceUnavailable, "")
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
		PollErrs: []error{
			unavailable,
			models.NewErrUnrecognizedState("run status", "EXPLODING"),
			unavailable,
		},
	})
	outcome, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().NoError(outcome.Err)
	s.True(outcome.Succeeded())
}

func (s *ControllerTestSuite) TestTransientRetryBudgetIsBounded() {
	unavailable := simclient.NewErrUnexpectedStatus("executor: getting run", http.StatusServiceUnavailable, "")
	s.params.MaxTransientAttempts = 3
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{
		FinalStatus: models.RunStatusSucceeded,
		PollErrs:    []error{unavailable, unavailable, unavailable, unavailable},
	})
	outcome, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	var exhausted controller.ErrRetriesExhausted
	s.Require().ErrorAs(outcome.Err, &exhausted)
	s.Equal(3, exhausted.Attempts)
	s.Equal(models.PhaseFailed, outcome.Progress.Phase)
}

func (s *ControllerTestSuite) TestPermanentPollErrorFailsImmediately() {
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{
		FinalStatus: models.RunStatusSucceeded,
		PollErrs:    []error{simclient.NewErrUnexpectedStatus("executor: getting run", http.StatusBadRequest, "")},
	})
	outcome, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().Error(outcome.Err)
	s.ErrorAs(outcome.Err, &simclient.ErrUnexpectedStatus{})
}

func (s *ControllerTestSuite) TestExecutionTimeout() {
	s.params.Timeouts.Execution = 50 * time.Millisecond
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{Block: true})
	outcome, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.ErrorAs(outcome.Err, &controller.ErrExecutionTimeout{})
	s.Equal(models.PhaseFailed, outcome.Progress.Phase)
}

func (s *ControllerTestSuite) TestCancellation() {
	s.service.SetBehaviour(copasi.ID, fake.Behaviour{Block: true})
	ctx, cancel := context.WithCancel(s.ctx)
	time.AfterFunc(20*time.Millisecond, cancel)

	c, err := controller.NewSubmissionController(s.params, controller.SubmissionRequest{
		Archive:   s.archive,
		Simulator: models.SimulatorRef{ID: "copasi"},
	}, nil)
	s.Require().NoError(err)
	outcome := c.Run(ctx)
	s.ErrorIs(outcome.Err, context.Canceled)
	s.Equal(models.PhaseFailed, outcome.Progress.Phase)
}

func (s *ControllerTestSuite) TestUnknownSimulator() {
	outcome, _ := s.submit(models.SimulatorRef{ID: "vcell"}, "")
	s.ErrorAs(outcome.Err, &catalog.ErrSimulatorNotFound{})
	s.Zero(s.service.Submissions())
}

func (s *ControllerTestSuite) TestLookupUnknownRunID() {
	outcome := s.lookup("no-such-run")
	s.True(outcome.NotFound())
	s.False(outcome.Succeeded())
	s.ErrorAs(outcome.Err, &simclient.ErrRunIDNotFound{})
	s.Contains(outcome.Progress.Error, "no-such-run")
	s.Zero(s.service.Submissions())
}

func (s *ControllerTestSuite) TestLookupExternalRun() {
	s.service.AddRun("ext-2", tellurium, fake.Behaviour{
		Polls:       1,
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})

	outcome := s.lookup("ext-2")
	s.Require().NoError(outcome.Err)
	s.False(outcome.Progress.Cached)
	s.Equal(tellurium.Ref(), outcome.Progress.Simulator)
	s.Equal(models.RunKey{
		ArchiveHash:     controller.ExternalArchiveHash,
		SimulatorDigest: tellurium.Digest.String(),
		CacheBuster:     "ext-2",
	}, outcome.Record.Key)

	again := s.lookup("ext-2")
	s.Require().NoError(again.Err)
	s.True(again.Progress.Cached)
	s.Zero(s.service.Submissions())
}

func (s *ControllerTestSuite) TestLookupServesSubmittedRun() {
	submitted, _ := s.submit(models.SimulatorRef{ID: "copasi"}, "")
	s.Require().True(submitted.Succeeded())

	outcome := s.lookup(submitted.Record.RunID)
	s.Require().NoError(outcome.Err)
	s.True(outcome.Progress.Cached)
	s.Equal(submitted.Record.Key, outcome.Record.Key)
}

func (s *ControllerTestSuite) TestLookupFailedRun() {
	s.service.AddRun("ext-3", copasi, fake.Behaviour{FinalStatus: models.RunStatusSkipped})
	outcome := s.lookup("ext-3")
	var runErr controller.ErrRunFailed
	s.Require().ErrorAs(outcome.Err, &runErr)
	s.Equal(models.RunStatusSkipped, runErr.Status)
	s.False(outcome.NotFound())
}

func (s *ControllerTestSuite) TestLookupRunOfUncataloguedSimulator() {
	vcell := models.Simulator{ID: "vcell", Version: "7.5"}
	s.service.AddRun("ext-4", vcell, fake.Behaviour{
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})
	outcome := s.lookup("ext-4")
	s.Require().NoError(outcome.Err)
	s.Equal(vcell, outcome.Record.Simulator)
	s.Empty(outcome.Record.Key.SimulatorDigest)

	again := s.lookup("ext-4")
	s.Require().NoError(again.Err)
	s.True(again.Progress.Cached)
}

// racingCache returns params whose cache already holds a record under every
// key it is asked for, without the controller seeing it before inserting.
func (s *ControllerTestSuite) racingCache() (controller.Params, *inmemory.InMemoryStore, models.Archive) {
	underlying := inmemory.NewInMemoryStore()
	blobStore, err := local.NewStore(s.T().TempDir())
	s.Require().NoError(err)
	cache := contentcache.New(contentcache.Params{Store: unseenRuns{Store: underlying}, Blob: blobStore})
	archive, err := cache.LookupOrCreateArchive(s.ctx, "model.omex", []byte("PK sbml"))
	s.Require().NoError(err)

	params := s.params
	params.Cache = cache
	return params, underlying, archive
}

func (s *ControllerTestSuite) TestSubmissionLosingInsertRaceFollowsOwnRunUncached() {
	params, underlying, archive := s.racingCache()
	winner := models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     archive.Hash,
			SimulatorDigest: copasi.Digest.String(),
		},
		Simulator: copasi,
		RunID:     "run-winner",
		Status:    models.RunStatusRunning,
	}
	_, err := underlying.CreateRun(s.ctx, winner)
	s.Require().NoError(err)

	c, err := controller.NewSubmissionController(params, controller.SubmissionRequest{
		Archive:   archive,
		Simulator: models.SimulatorRef{ID: "copasi"},
	}, nil)
	s.Require().NoError(err)
	outcome := c.Run(s.ctx)

	s.Require().NoError(outcome.Err)
	s.Equal(models.PhaseDone, outcome.Progress.Phase)
	s.False(outcome.Progress.Cached)
	s.Equal("run-1", outcome.Record.RunID)
	s.Equal(1, s.service.Submissions())

	_, err = underlying.GetRunByRunID(s.ctx, "run-1")
	s.ErrorAs(err, &store.ErrRunNotFound{})
	stored, err := underlying.FindRuns(s.ctx, winner.Key)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("run-winner", stored[0].RunID)
	s.Equal(models.RunStatusRunning, stored[0].Status)
}

func (s *ControllerTestSuite) TestLookupLosingInsertRaceFollowsRunUncached() {
	params, underlying, _ := s.racingCache()
	s.service.AddRun("ext-5", copasi, fake.Behaviour{
		Polls:       1,
		FinalStatus: models.RunStatusSucceeded,
		Datasets:    []models.Dataset{report},
	})
	winner := models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     controller.ExternalArchiveHash,
			SimulatorDigest: copasi.Digest.String(),
			CacheBuster:     "ext-5",
		},
		Simulator: copasi,
		RunID:     "ext-5",
		Status:    models.RunStatusRunning,
	}
	_, err := underlying.CreateRun(s.ctx, winner)
	s.Require().NoError(err)

	c, err := controller.NewLookupController(params, "ext-5", nil)
	s.Require().NoError(err)
	outcome := c.Run(s.ctx)

	s.Require().NoError(outcome.Err)
	s.Equal(models.PhaseDone, outcome.Progress.Phase)
	s.False(outcome.Progress.Cached)
	s.Equal(models.RunStatusSucceeded, outcome.Record.Status)

	stored, err := underlying.GetRunByRunID(s.ctx, "ext-5")
	s.Require().NoError(err)
	s.Equal(models.RunStatusRunning, stored.Status)
	s.Nil(stored.Outputs)
}

func (s *ControllerTestSuite) TestSimulatorsWithoutDigestDoNotShareRuns() {
	service := fake.NewService(
		models.Simulator{ID: "copasi", Version: "1"},
		models.Simulator{ID: "tellurium", Version: "1"},
	)
	listing, err := basic.NewCache[[]models.Simulator]()
	s.Require().NoError(err)
	s.T().Cleanup(listing.Close)
	params := s.params
	params.Resolver = catalog.NewResolver(catalog.ResolverParams{Catalog: service, Cache: listing})
	params.Executor = service
	params.Results = service

	for _, id := range []string{"copasi", "tellurium"} {
		c, err := controller.NewSubmissionController(params, controller.SubmissionRequest{
			Archive:   s.archive,
			Simulator: models.SimulatorRef{ID: id},
		}, nil)
		s.Require().NoError(err)
		outcome := c.Run(s.ctx)
		s.Equal(models.PhaseFailed, outcome.Progress.Phase, id)
		s.ErrorAs(outcome.Err, &catalog.ErrInvalidSimulator{}, id)
	}
	s.Zero(service.Submissions())
}
