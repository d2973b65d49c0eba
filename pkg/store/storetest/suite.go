// Package storetest holds the conformance suite every store.Store
// implementation is tested against.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

// StoreSuite runs against the store returned by Factory.
type StoreSuite struct {
	suite.Suite
	Factory func(clk clock.Clock) store.Store
	Store   store.Store
	Clock   *clock.Mock
	Ctx     context.Context
}

func (s *StoreSuite) SetupTest() {
	s.Clock = clock.NewMock()
	s.Clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.Ctx = context.Background()
	s.Store = s.Factory(s.Clock)
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.Store.Close(s.Ctx))
}

func testSimulator(id string) models.Simulator {
	return models.Simulator{
		ID:      id,
		Version: "1.0.0",
		Digest:  digest.FromString(id),
	}
}

func testRun(archiveHash string, sim models.Simulator, runID string) models.RunRecord {
	return models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     archiveHash,
			SimulatorDigest: sim.Digest.String(),
		},
		Simulator: sim,
		RunID:     runID,
		Status:    models.RunStatusQueued,
	}
}

func (s *StoreSuite) TestArchives() {
	archive := models.Archive{
		Hash:     "bafkreiaxo",
		Filename: "model.omex",
		Bucket:   "archives",
		Path:     "omex/bafkreiaxo",
		Size:     1024,
	}
	s.Require().NoError(s.Store.CreateArchive(s.Ctx, archive))

	got, err := s.Store.GetArchive(s.Ctx, archive.Hash)
	s.Require().NoError(err)
	s.Equal(archive.Filename, got.Filename)
	s.Equal(archive.Path, got.Path)
	s.Equal(archive.Size, got.Size)
	s.True(got.CreateTime.Equal(s.Clock.Now()))

	err = s.Store.CreateArchive(s.Ctx, archive)
	s.ErrorAs(err, &store.ErrArchiveAlreadyExists{})

	s.Require().NoError(s.Store.DeleteArchive(s.Ctx, archive.Hash))
	_, err = s.Store.GetArchive(s.Ctx, archive.Hash)
	s.ErrorAs(err, &store.ErrArchiveNotFound{})
	s.ErrorAs(s.Store.DeleteArchive(s.Ctx, archive.Hash), &store.ErrArchiveNotFound{})
}

func (s *StoreSuite) TestRunLifecycle() {
	sim := testSimulator("copasi")
	run := testRun("bafk1", sim, "run-1")

	created, err := s.Store.CreateRun(s.Ctx, run)
	s.Require().NoError(err)
	s.Equal(uint64(1), created.Revision)

	_, err = s.Store.CreateRun(s.Ctx, run)
	s.ErrorAs(err, &store.ErrRunAlreadyExists{})

	runs, err := s.Store.FindRuns(s.Ctx, run.Key)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal("run-1", runs[0].RunID)
	s.Equal(models.RunStatusQueued, runs[0].Status)
	s.Equal(sim.ID, runs[0].Simulator.ID)

	byID, err := s.Store.GetRunByRunID(s.Ctx, "run-1")
	s.Require().NoError(err)
	s.Equal(run.Key, byID.Key)

	_, err = s.Store.UpdateRun(s.Ctx, store.UpdateRunRequest{
		Key:       run.Key,
		Condition: store.UpdateRunCondition{ExpectedStatuses: []models.RunStatus{models.RunStatusRunning}},
		NewValues: models.RunRecord{Status: models.RunStatusSucceeded},
	})
	s.ErrorAs(err, &store.ErrInvalidRunStatus{})

	s.Clock.Add(time.Minute)
	running, err := s.Store.UpdateRun(s.Ctx, store.UpdateRunRequest{
		Key:       run.Key,
		Condition: store.UpdateRunCondition{ExpectedRevision: 1},
		NewValues: models.RunRecord{Status: models.RunStatusRunning},
	})
	s.Require().NoError(err)
	s.Equal(uint64(2), running.Revision)
	s.True(running.ModifyTime.Equal(s.Clock.Now()))

	_, err = s.Store.UpdateRun(s.Ctx, store.UpdateRunRequest{
		Key:       run.Key,
		Condition: store.UpdateRunCondition{ExpectedRevision: 1},
		NewValues: models.RunRecord{Status: models.RunStatusRunning},
	})
	s.ErrorAs(err, &store.ErrInvalidRunRevision{})

	outputs := &models.OutputMetadata{Datasets: []models.DatasetMetadata{
		{Name: "report", Shape: []int{2, 11}, Labels: []string{"time", "S1"}},
	}}
	_, err = s.Store.UpdateRun(s.Ctx, store.UpdateRunRequest{
		Key:       run.Key,
		NewValues: models.RunRecord{Status: models.RunStatusSucceeded, Outputs: outputs},
	})
	s.Require().NoError(err)

	runs, err = s.Store.FindRuns(s.Ctx, run.Key)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.True(runs[0].IsUsable())
	s.Equal(outputs, runs[0].Outputs)

	_, err = s.Store.UpdateRun(s.Ctx, store.UpdateRunRequest{
		Key:       run.Key,
		NewValues: models.RunRecord{Status: models.RunStatusFailed},
	})
	s.ErrorAs(err, &store.ErrRunAlreadyTerminal{})

	s.Require().NoError(s.Store.DeleteRun(s.Ctx, run.Key))
	runs, err = s.Store.FindRuns(s.Ctx, run.Key)
	s.Require().NoError(err)
	s.Empty(runs)
	_, err = s.Store.GetRunByRunID(s.Ctx, "run-1")
	s.ErrorAs(err, &store.ErrRunNotFound{})
	s.ErrorAs(s.Store.DeleteRun(s.Ctx, run.Key), &store.ErrRunNotFound{})
}

func (s *StoreSuite) TestRunKeyIncludesCacheBuster() {
	sim := testSimulator("tellurium")
	first := testRun("bafk2", sim, "run-a")
	second := testRun("bafk2", sim, "run-b")
	second.Key.CacheBuster = "again"

	_, err := s.Store.CreateRun(s.Ctx, first)
	s.Require().NoError(err)
	_, err = s.Store.CreateRun(s.Ctx, second)
	s.Require().NoError(err)

	runs, err := s.Store.FindRuns(s.Ctx, second.Key)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal("run-b", runs[0].RunID)
}

func (s *StoreSuite) TestConcurrentCreateRunFirstWriterWins() {
	sim := testSimulator("amici")
	const writers = 8

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Store.CreateRun(s.Ctx, testRun("bafk3", sim, "run-"+string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	succeeded := lo.CountBy(errs, func(err error) bool { return err == nil })
	s.Equal(1, succeeded)
	for _, err := range errs {
		if err != nil {
			s.True(errors.As(err, &store.ErrRunAlreadyExists{}), "unexpected error %v", err)
		}
	}

	runs, err := s.Store.FindRuns(s.Ctx, testRun("bafk3", sim, "").Key)
	s.Require().NoError(err)
	s.Len(runs, 1)
}

func (s *StoreSuite) TestJobLifecycle() {
	params := models.JobParams{RunIDs: []string{"r1", "r2"}, Tolerances: models.DefaultTolerances()}
	first, err := s.Store.CreateJob(s.Ctx, models.VerificationJob{
		Kind:   models.JobKindRuns,
		Params: params,
		Runs:   models.NewRunProgress(models.JobKindRuns, params),
	})
	s.Require().NoError(err)
	s.Equal(models.JobStatePending, first.State)
	s.NotZero(first.ID)

	second, err := s.Store.CreateJob(s.Ctx, models.VerificationJob{Kind: models.JobKindRuns, Params: params})
	s.Require().NoError(err)
	s.Greater(second.ID, first.ID)

	got, err := s.Store.GetJob(s.Ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(params.RunIDs, got.Params.RunIDs)
	s.Require().Len(got.Runs, 2)
	s.Equal("r2", got.Runs[1].RunID)
	s.Equal(models.PhaseInit, got.Runs[1].Phase)

	_, err = s.Store.GetJob(s.Ctx, 999)
	s.ErrorAs(err, &store.ErrJobNotFound{})

	claimed, ok, err := s.Store.ClaimPendingJob(s.Ctx, "worker-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(first.ID, claimed.ID)
	s.Equal(models.JobStateInProgress, claimed.State)
	s.Equal("worker-1", claimed.WorkerID)
	s.True(claimed.StartTime.Equal(s.Clock.Now()))

	claimed2, ok, err := s.Store.ClaimPendingJob(s.Ctx, "worker-2")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(second.ID, claimed2.ID)

	_, ok, err = s.Store.ClaimPendingJob(s.Ctx, "worker-3")
	s.Require().NoError(err)
	s.False(ok)

	inProgress, err := s.Store.GetInProgressJobs(s.Ctx)
	s.Require().NoError(err)
	s.Len(inProgress, 2)

	s.Clock.Add(time.Minute)
	s.Require().NoError(s.Store.Heartbeat(s.Ctx, first.ID))
	got, err = s.Store.GetJob(s.Ctx, first.ID)
	s.Require().NoError(err)
	s.True(got.HeartbeatTime.Equal(s.Clock.Now()))

	_, err = s.Store.UpdateJob(s.Ctx, store.UpdateJobRequest{
		JobID:     first.ID,
		Condition: store.UpdateJobCondition{ExpectedState: models.JobStatePending},
		NewValues: got,
	})
	s.ErrorAs(err, &store.ErrInvalidJobState{})

	results := &models.ComparisonResults{Datasets: []models.DatasetComparison{{
		Dataset:    "report",
		Simulators: []string{"a:1", "b:1"},
		Cells: [][]models.ComparisonCell{
			{{SimulatorA: "a:1", SimulatorB: "a:1", Scores: models.Scores{0}, Close: []bool{true}}, {SimulatorA: "a:1", SimulatorB: "b:1", Scores: models.Scores{math.NaN()}, Close: []bool{false}}},
			{{SimulatorA: "b:1", SimulatorB: "a:1", Error: "labels differ"}, {SimulatorA: "b:1", SimulatorB: "b:1", Scores: models.Scores{0}, Close: []bool{true}}},
		},
	}}}
	completed := got
	completed.State = models.JobStateCompleted
	completed.Results = results
	updated, err := s.Store.UpdateJob(s.Ctx, store.UpdateJobRequest{
		JobID:     first.ID,
		Condition: store.UpdateJobCondition{ExpectedState: models.JobStateInProgress, ExpectedRevision: got.Revision},
		NewValues: completed,
	})
	s.Require().NoError(err)
	s.Equal(got.Revision+1, updated.Revision)

	got, err = s.Store.GetJob(s.Ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStateCompleted, got.State)
	s.Require().NotNil(got.Results)
	cells := got.Results.Datasets[0].Cells
	s.True(math.IsNaN(cells[0][1].Scores[0]))
	s.Equal("labels differ", cells[1][0].Error)
	s.Equal("worker-1", got.WorkerID)

	_, err = s.Store.UpdateJob(s.Ctx, store.UpdateJobRequest{JobID: first.ID, NewValues: completed})
	s.ErrorAs(err, &store.ErrJobAlreadyTerminal{})
	s.ErrorAs(s.Store.Heartbeat(s.Ctx, first.ID), &store.ErrInvalidJobState{})

	inProgress, err = s.Store.GetInProgressJobs(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(inProgress, 1)
	s.Equal(second.ID, inProgress[0].ID)
}
