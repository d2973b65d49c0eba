//go:build unit || !integration

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
	"github.com/bacalhau-project/simverify/pkg/store/inmemory"
)

type HousekeepingTestSuite struct {
	suite.Suite
	ctx          context.Context
	clock        *clock.Mock
	store        store.Store
	housekeeping *Housekeeping
}

func TestHousekeepingTestSuite(t *testing.T) {
	suite.Run(t, new(HousekeepingTestSuite))
}

func (s *HousekeepingTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewMock()
	s.clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.store = inmemory.NewInMemoryStore(inmemory.WithClock(s.clock))

	var err error
	s.housekeeping, err = NewHousekeeping(HousekeepingParams{
		Store:            s.store,
		Interval:         time.Second,
		HeartbeatTimeout: time.Minute,
		Clock:            s.clock,
	})
	s.Require().NoError(err)
}

func (s *HousekeepingTestSuite) claimJob(workerID string) models.VerificationJob {
	_, err := s.store.CreateJob(s.ctx, models.VerificationJob{
		Kind:   models.JobKindRuns,
		Params: models.JobParams{RunIDs: []string{"run-1"}},
		State:  models.JobStatePending,
		Runs:   []models.RunProgress{{RunID: "run-1", Phase: models.PhaseInit}},
	})
	s.Require().NoError(err)
	job, ok, err := s.store.ClaimPendingJob(s.ctx, workerID)
	s.Require().NoError(err)
	s.Require().True(ok)
	return job
}

func (s *HousekeepingTestSuite) TestInvalidParams() {
	_, err := NewHousekeeping(HousekeepingParams{})
	s.Error(err)
	_, err = NewHousekeeping(HousekeepingParams{Store: s.store, Interval: time.Second})
	s.Error(err)
}

func (s *HousekeepingTestSuite) TestFreshJobIsKept() {
	job := s.claimJob("worker-1")
	s.clock.Add(30 * time.Second)

	s.Equal(0, s.housekeeping.FailAbandonedJobs(s.ctx))
	current, err := s.store.GetJob(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStateInProgress, current.State)
}

func (s *HousekeepingTestSuite) TestHeartbeatKeepsJobAlive() {
	job := s.claimJob("worker-1")
	s.clock.Add(50 * time.Second)
	s.Require().NoError(s.store.Heartbeat(s.ctx, job.ID))
	s.clock.Add(50 * time.Second)

	s.Equal(0, s.housekeeping.FailAbandonedJobs(s.ctx))
}

func (s *HousekeepingTestSuite) TestAbandonedJobIsFailed() {
	stale := s.claimJob("worker-crashed")
	s.clock.Add(2 * time.Minute)
	fresh := s.claimJob("worker-alive")

	s.Equal(1, s.housekeeping.FailAbandonedJobs(s.ctx))

	failed, err := s.store.GetJob(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStateFailed, failed.State)
	s.Contains(failed.Error, "worker-crashed")

	alive, err := s.store.GetJob(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStateInProgress, alive.State)
}

func (s *HousekeepingTestSuite) TestStartAndStop() {
	job := s.claimJob("worker-crashed")
	s.clock.Add(2 * time.Minute)

	s.housekeeping.Start(s.ctx)
	s.True(s.housekeeping.IsRunning())

	s.Eventually(func() bool {
		// the ticker may be created after the first advance
		s.clock.Add(time.Second)
		current, err := s.store.GetJob(s.ctx, job.ID)
		return err == nil && current.State == models.JobStateFailed
	}, 5*time.Second, 10*time.Millisecond)

	s.housekeeping.Stop(s.ctx)
	s.False(s.housekeeping.IsRunning())
}
