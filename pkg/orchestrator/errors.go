package orchestrator

import (
	"fmt"
)

const (
	// CancelledMessage is the error of a job cancelled by a caller.
	CancelledMessage = "cancelled"
)

// ErrNoSuccessfulRuns is returned when every run of a job failed and there is
// nothing left to compare.
type ErrNoSuccessfulRuns struct {
	JobID uint64
	// FirstError is the error of the first run in request order.
	FirstError string
}

func NewErrNoSuccessfulRuns(jobID uint64, firstError string) ErrNoSuccessfulRuns {
	return ErrNoSuccessfulRuns{JobID: jobID, FirstError: firstError}
}

func (e ErrNoSuccessfulRuns) Error() string {
	return fmt.Sprintf("no run of job %d succeeded: %s", e.JobID, e.FirstError)
}

// ErrFetchingDatasets is returned when the datasets of a successful run could
// not be downloaded.
type ErrFetchingDatasets struct {
	RunID string
	Err   error
}

func NewErrFetchingDatasets(runID string, err error) ErrFetchingDatasets {
	return ErrFetchingDatasets{RunID: runID, Err: err}
}

func (e ErrFetchingDatasets) Error() string {
	return fmt.Sprintf("fetching datasets of run %s: %s", e.RunID, e.Err)
}

func (e ErrFetchingDatasets) Unwrap() error {
	return e.Err
}
