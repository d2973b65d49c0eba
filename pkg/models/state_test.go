//go:build unit || !integration

package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
)

type StateTestSuite struct {
	suite.Suite
}

func TestStateTestSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (s *StateTestSuite) TestParseRunStatus() {
	for _, name := range []string{"QUEUED", "running", " SUCCEEDED ", "FAILED", "SKIPPED", "UNKNOWN", "RUN_ID_NOT_FOUND"} {
		status, err := models.ParseRunStatus(name)
		s.NoError(err, name)
		s.NotEqual(models.RunStatusUnrecognized, status, name)
	}

	status, err := models.ParseRunStatus("EXPLODED")
	s.Equal(models.RunStatusUnrecognized, status)
	var unrecognized models.ErrUnrecognizedState
	s.True(errors.As(err, &unrecognized))
	s.Equal("EXPLODED", unrecognized.Value)
}

func (s *StateTestSuite) TestRunStatusTerminal() {
	s.True(models.RunStatusSucceeded.IsTerminal())
	s.True(models.RunStatusFailed.IsTerminal())
	s.True(models.RunStatusRunIDNotFound.IsTerminal())
	s.True(models.RunStatusSkipped.IsTerminal())
	s.False(models.RunStatusQueued.IsTerminal())
	s.False(models.RunStatusRunning.IsTerminal())
	s.False(models.RunStatusUnknown.IsTerminal())
	s.False(models.RunStatusUnrecognized.IsTerminal())
}

func (s *StateTestSuite) TestStrictJSONDecoding() {
	var progress models.RunProgress
	s.NoError(json.Unmarshal([]byte(`{"Status":"RUNNING","Phase":"POLLING"}`), &progress))
	s.Equal(models.RunStatusRunning, progress.Status)

	err := json.Unmarshal([]byte(`{"Status":"MAYBE"}`), &progress)
	s.Error(err)

	var job models.VerificationJob
	s.Error(json.Unmarshal([]byte(`{"State":"DONE-ISH"}`), &job))
	s.NoError(json.Unmarshal([]byte(`{"State":"RUN_ID_NOT_FOUND"}`), &job))
	s.Equal(models.JobStateRunIDNotFound, job.State)
	s.True(job.IsTerminal())
}

func (s *StateTestSuite) TestJobStateTerminal() {
	s.False(models.JobStatePending.IsTerminal())
	s.False(models.JobStateInProgress.IsTerminal())
	s.True(models.JobStateCompleted.IsTerminal())
	s.True(models.JobStateFailed.IsTerminal())
	s.True(models.JobStateRunIDNotFound.IsTerminal())
}
