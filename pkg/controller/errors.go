package controller

import (
	"fmt"
	"time"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// ErrSubmissionFailed is returned when the executor rejected a submission.
// Submissions are never retried.
type ErrSubmissionFailed struct {
	Simulator models.Simulator
	Err       error
}

func NewErrSubmissionFailed(simulator models.Simulator, err error) ErrSubmissionFailed {
	return ErrSubmissionFailed{Simulator: simulator, Err: err}
}

func (e ErrSubmissionFailed) Error() string {
	return fmt.Sprintf("submitting to simulator %s: %s", e.Simulator, e.Err)
}

func (e ErrSubmissionFailed) Unwrap() error {
	return e.Err
}

// ErrRunFailed is returned when a run reached a terminal status other than
// SUCCEEDED.
type ErrRunFailed struct {
	RunID  string
	Status models.RunStatus
	Reason string
}

func NewErrRunFailed(runID string, status models.RunStatus, reason string) ErrRunFailed {
	return ErrRunFailed{RunID: runID, Status: status, Reason: reason}
}

func (e ErrRunFailed) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("run %s finished with status %s", e.RunID, e.Status)
	}
	return fmt.Sprintf("run %s finished with status %s: %s", e.RunID, e.Status, e.Reason)
}

// ErrRetriesExhausted is returned when polling kept failing transiently.
type ErrRetriesExhausted struct {
	RunID    string
	Attempts int
	Err      error
}

func NewErrRetriesExhausted(runID string, attempts int, err error) ErrRetriesExhausted {
	return ErrRetriesExhausted{RunID: runID, Attempts: attempts, Err: err}
}

func (e ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("polling run %s failed after %d attempts: %s", e.RunID, e.Attempts, e.Err)
}

func (e ErrRetriesExhausted) Unwrap() error {
	return e.Err
}

// ErrExecutionTimeout is returned when a run did not finish in time. The
// remote run is left untouched.
type ErrExecutionTimeout struct {
	RunID   string
	Timeout time.Duration
}

func NewErrExecutionTimeout(runID string, timeout time.Duration) ErrExecutionTimeout {
	return ErrExecutionTimeout{RunID: runID, Timeout: timeout}
}

func (e ErrExecutionTimeout) Error() string {
	return fmt.Sprintf("run %s did not finish within %s", e.RunID, e.Timeout)
}
