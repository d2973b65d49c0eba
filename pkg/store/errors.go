package store

import (
	"fmt"
	"strconv"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// ErrArchiveNotFound is returned when the archive is not found
type ErrArchiveNotFound struct {
	Hash string
}

func NewErrArchiveNotFound(hash string) ErrArchiveNotFound {
	return ErrArchiveNotFound{Hash: hash}
}

func (e ErrArchiveNotFound) Error() string {
	return "archive not found: " + e.Hash
}

// ErrArchiveAlreadyExists is returned when an archive with the same hash already exists
type ErrArchiveAlreadyExists struct {
	Hash string
}

func NewErrArchiveAlreadyExists(hash string) ErrArchiveAlreadyExists {
	return ErrArchiveAlreadyExists{Hash: hash}
}

func (e ErrArchiveAlreadyExists) Error() string {
	return "archive already exists: " + e.Hash
}

// ErrRunNotFound is returned when no run matches a key or run id
type ErrRunNotFound struct {
	ID string
}

func NewErrRunNotFound(id string) ErrRunNotFound {
	return ErrRunNotFound{ID: id}
}

func (e ErrRunNotFound) Error() string {
	return "run not found: " + e.ID
}

// ErrRunAlreadyExists is returned when a run with the same key already exists
type ErrRunAlreadyExists struct {
	Key models.RunKey
}

func NewErrRunAlreadyExists(key models.RunKey) ErrRunAlreadyExists {
	return ErrRunAlreadyExists{Key: key}
}

func (e ErrRunAlreadyExists) Error() string {
	return "run already exists: " + e.Key.String()
}

// ErrInvalidRunStatus is returned when a run is not in one of the expected statuses.
type ErrInvalidRunStatus struct {
	Key      models.RunKey
	Actual   models.RunStatus
	Expected []models.RunStatus
}

func NewErrInvalidRunStatus(key models.RunKey, actual models.RunStatus, expected ...models.RunStatus) ErrInvalidRunStatus {
	return ErrInvalidRunStatus{Key: key, Actual: actual, Expected: expected}
}

func (e ErrInvalidRunStatus) Error() string {
	return fmt.Sprintf("run %s is in status %s but expected one of %v", e.Key, e.Actual, e.Expected)
}

// ErrInvalidRunRevision is returned when a run has an unexpected revision.
type ErrInvalidRunRevision struct {
	Key      models.RunKey
	Actual   uint64
	Expected uint64
}

func NewErrInvalidRunRevision(key models.RunKey, actual, expected uint64) ErrInvalidRunRevision {
	return ErrInvalidRunRevision{Key: key, Actual: actual, Expected: expected}
}

func (e ErrInvalidRunRevision) Error() string {
	return fmt.Sprintf("run %s has revision %d but expected %d", e.Key, e.Actual, e.Expected)
}

// ErrRunAlreadyTerminal is returned when a run is already in a terminal status and cannot be updated.
type ErrRunAlreadyTerminal struct {
	Key       models.RunKey
	Actual    models.RunStatus
	NewStatus models.RunStatus
}

func NewErrRunAlreadyTerminal(key models.RunKey, actual, newStatus models.RunStatus) ErrRunAlreadyTerminal {
	return ErrRunAlreadyTerminal{Key: key, Actual: actual, NewStatus: newStatus}
}

func (e ErrRunAlreadyTerminal) Error() string {
	return fmt.Sprintf("run %s is in terminal status %s and cannot transition to %s", e.Key, e.Actual, e.NewStatus)
}

// ErrJobNotFound is returned when the job is not found
type ErrJobNotFound struct {
	JobID uint64
}

func NewErrJobNotFound(id uint64) ErrJobNotFound {
	return ErrJobNotFound{JobID: id}
}

func (e ErrJobNotFound) Error() string {
	return "job not found: " + strconv.FormatUint(e.JobID, 10)
}

// ErrInvalidJobState is returned when a job is in an invalid state.
type ErrInvalidJobState struct {
	JobID    uint64
	Actual   models.JobState
	Expected models.JobState
}

func NewErrInvalidJobState(id uint64, actual, expected models.JobState) ErrInvalidJobState {
	return ErrInvalidJobState{JobID: id, Actual: actual, Expected: expected}
}

func (e ErrInvalidJobState) Error() string {
	if e.Expected.IsUndefined() {
		return fmt.Sprintf("job %d is in unexpected state %s", e.JobID, e.Actual)
	}
	return fmt.Sprintf("job %d is in state %s but expected %s", e.JobID, e.Actual, e.Expected)
}

// ErrInvalidJobRevision is returned when a job has an unexpected revision.
type ErrInvalidJobRevision struct {
	JobID    uint64
	Actual   uint64
	Expected uint64
}

func NewErrInvalidJobRevision(id uint64, actual, expected uint64) ErrInvalidJobRevision {
	return ErrInvalidJobRevision{JobID: id, Actual: actual, Expected: expected}
}

func (e ErrInvalidJobRevision) Error() string {
	return fmt.Sprintf("job %d has revision %d but expected %d", e.JobID, e.Actual, e.Expected)
}

// ErrJobAlreadyTerminal is returned when a job is already in terminal state and cannot be updated.
type ErrJobAlreadyTerminal struct {
	JobID    uint64
	Actual   models.JobState
	NewState models.JobState
}

func NewErrJobAlreadyTerminal(id uint64, actual, newState models.JobState) ErrJobAlreadyTerminal {
	return ErrJobAlreadyTerminal{JobID: id, Actual: actual, NewState: newState}
}

func (e ErrJobAlreadyTerminal) Error() string {
	return fmt.Sprintf("job %d is in terminal state %s and cannot transition to %s", e.JobID, e.Actual, e.NewState)
}
