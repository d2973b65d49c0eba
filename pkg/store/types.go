package store

import (
	"context"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// A Store persists archives, cached run records and verification jobs.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetArchive returns the archive with the given content hash, or
	// ErrArchiveNotFound.
	GetArchive(ctx context.Context, hash string) (models.Archive, error)

	// CreateArchive persists a new archive. It fails with
	// ErrArchiveAlreadyExists if the hash is already known.
	CreateArchive(ctx context.Context, archive models.Archive) error

	// DeleteArchive removes an archive record. Runs referencing it are kept.
	DeleteArchive(ctx context.Context, hash string) error

	// FindRuns returns every run record stored under the key. More than one
	// record is a consistency fault the caller has to surface.
	FindRuns(ctx context.Context, key models.RunKey) ([]models.RunRecord, error)

	// GetRunByRunID returns the run record with the given executor run id,
	// or ErrRunNotFound.
	GetRunByRunID(ctx context.Context, runID string) (models.RunRecord, error)

	// CreateRun persists a new run record and returns it as stored. It fails
	// with ErrRunAlreadyExists if a record with the same key exists.
	CreateRun(ctx context.Context, run models.RunRecord) (models.RunRecord, error)

	// UpdateRun updates the mutable fields of a run record if the condition
	// holds. Terminal records cannot be updated.
	UpdateRun(ctx context.Context, request UpdateRunRequest) (models.RunRecord, error)

	// DeleteRun removes the run record stored under the key.
	DeleteRun(ctx context.Context, key models.RunKey) error

	// CreateJob persists a new PENDING job and returns it with its assigned
	// id. Ids are assigned in increasing order.
	CreateJob(ctx context.Context, job models.VerificationJob) (models.VerificationJob, error)

	// GetJob returns the last committed state of a job, or ErrJobNotFound.
	GetJob(ctx context.Context, id uint64) (models.VerificationJob, error)

	// UpdateJob replaces the mutable fields of a job if the condition holds.
	// Terminal jobs cannot be updated.
	UpdateJob(ctx context.Context, request UpdateJobRequest) (models.VerificationJob, error)

	// ClaimPendingJob moves the oldest PENDING job to IN_PROGRESS on behalf of
	// the worker. It returns false if no job is pending.
	ClaimPendingJob(ctx context.Context, workerID string) (models.VerificationJob, bool, error)

	// GetInProgressJobs returns every job in IN_PROGRESS.
	GetInProgressJobs(ctx context.Context) ([]models.VerificationJob, error)

	// Heartbeat records that the worker running the job is alive.
	Heartbeat(ctx context.Context, id uint64) error

	// Close releases the resources held by the store.
	Close(ctx context.Context) error
}

type UpdateRunRequest struct {
	Key       models.RunKey
	Condition UpdateRunCondition
	NewValues models.RunRecord
}

type UpdateRunCondition struct {
	ExpectedStatuses []models.RunStatus
	ExpectedRevision uint64
}

// Validate checks if the condition matches the given run
func (condition UpdateRunCondition) Validate(run models.RunRecord) error {
	if len(condition.ExpectedStatuses) > 0 {
		valid := false
		for _, s := range condition.ExpectedStatuses {
			if s == run.Status {
				valid = true
				break
			}
		}
		if !valid {
			return NewErrInvalidRunStatus(run.Key, run.Status, condition.ExpectedStatuses...)
		}
	}
	if condition.ExpectedRevision != 0 && condition.ExpectedRevision != run.Revision {
		return NewErrInvalidRunRevision(run.Key, run.Revision, condition.ExpectedRevision)
	}
	return nil
}

type UpdateJobRequest struct {
	JobID     uint64
	Condition UpdateJobCondition
	NewValues models.VerificationJob
}

type UpdateJobCondition struct {
	ExpectedState    models.JobState
	UnexpectedStates []models.JobState
	ExpectedRevision uint64
}

// Validate checks if the condition matches the given job
func (condition UpdateJobCondition) Validate(job models.VerificationJob) error {
	if !condition.ExpectedState.IsUndefined() && condition.ExpectedState != job.State {
		return NewErrInvalidJobState(job.ID, job.State, condition.ExpectedState)
	}
	if condition.ExpectedRevision != 0 && condition.ExpectedRevision != job.Revision {
		return NewErrInvalidJobRevision(job.ID, job.Revision, condition.ExpectedRevision)
	}
	for _, s := range condition.UnexpectedStates {
		if s == job.State {
			return NewErrInvalidJobState(job.ID, job.State, models.JobStateUndefined)
		}
	}
	return nil
}

// ApplyJobUpdate copies the mutable fields of a job update onto the stored job.
func ApplyJobUpdate(existing models.VerificationJob, newValues models.VerificationJob) models.VerificationJob {
	existing.State = newValues.State
	existing.Error = newValues.Error
	existing.Runs = newValues.Runs
	existing.Results = newValues.Results
	if newValues.WorkerID != "" {
		existing.WorkerID = newValues.WorkerID
	}
	if !newValues.StartTime.IsZero() {
		existing.StartTime = newValues.StartTime
	}
	if !newValues.HeartbeatTime.IsZero() {
		existing.HeartbeatTime = newValues.HeartbeatTime
	}
	return existing
}

// ApplyRunUpdate copies the mutable fields of a run update onto the stored run.
func ApplyRunUpdate(existing models.RunRecord, newValues models.RunRecord) models.RunRecord {
	existing.Status = newValues.Status
	existing.Error = newValues.Error
	if newValues.RunID != "" {
		existing.RunID = newValues.RunID
	}
	if newValues.Outputs != nil {
		existing.Outputs = newValues.Outputs
	}
	return existing
}
