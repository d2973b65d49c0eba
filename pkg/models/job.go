package models

import (
	"fmt"
	"time"
)

// JobKind tells the orchestrator how the runs of a job are obtained.
type JobKind string

const (
	// JobKindArchive submits a fresh archive to every requested simulator.
	JobKindArchive JobKind = "archive"
	// JobKindRuns compares runs that were already executed.
	JobKindRuns JobKind = "runs"
)

// FailurePolicy decides what a failed or missing run does to the whole job.
type FailurePolicy string

const (
	// FailurePolicyDefault picks the policy of the job kind.
	FailurePolicyDefault FailurePolicy = ""
	// FailurePolicyAbort fails the whole job with the error of the first failed run.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyExclude records failed runs as skipped and compares the rest.
	FailurePolicyExclude FailurePolicy = "exclude"
)

// Resolve returns the effective policy for a job kind.
func (p FailurePolicy) Resolve(kind JobKind) FailurePolicy {
	if p != FailurePolicyDefault {
		return p
	}
	if kind == JobKindArchive {
		return FailurePolicyExclude
	}
	return FailurePolicyAbort
}

// RunProgress is the last committed state of one controller of a job.
type RunProgress struct {
	// Simulator is the requested simulator, or the resolved one once known.
	Simulator SimulatorRef `json:"Simulator"`
	RunID     string       `json:"RunID,omitempty"`
	Phase     Phase        `json:"Phase"`
	Status    RunStatus    `json:"Status"`
	// Cached is set when the run was served from the content cache.
	Cached bool   `json:"Cached,omitempty"`
	Error  string `json:"Error,omitempty"`
}

// VerificationJob is the top level aggregate of a verification request.
type VerificationJob struct {
	ID     uint64    `json:"ID"`
	Kind   JobKind   `json:"Kind"`
	Params JobParams `json:"Params"`
	State  JobState  `json:"State"`
	Error  string    `json:"Error,omitempty"`

	// Runs holds one entry per requested simulator or run id, in request order.
	Runs    []RunProgress      `json:"Runs"`
	Results *ComparisonResults `json:"Results,omitempty"`

	// WorkerID is the worker that claimed the job.
	WorkerID      string    `json:"WorkerID,omitempty"`
	Revision      uint64    `json:"Revision"`
	CreateTime    time.Time `json:"CreateTime"`
	StartTime     time.Time `json:"StartTime,omitempty"`
	ModifyTime    time.Time `json:"ModifyTime"`
	HeartbeatTime time.Time `json:"HeartbeatTime,omitempty"`
}

func (j VerificationJob) String() string {
	return fmt.Sprintf("verification job %d", j.ID)
}

// IsTerminal returns true once the job can no longer change.
func (j VerificationJob) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Copy returns a deep enough copy for callers to mutate progress safely.
func (j VerificationJob) Copy() VerificationJob {
	out := j
	out.Params = j.Params.Copy()
	if j.Runs != nil {
		out.Runs = make([]RunProgress, len(j.Runs))
		copy(out.Runs, j.Runs)
	}
	return out
}

// NewRunProgress returns the initial progress entries of a job.
func NewRunProgress(kind JobKind, params JobParams) []RunProgress {
	if kind == JobKindRuns {
		out := make([]RunProgress, len(params.RunIDs))
		for i, id := range params.RunIDs {
			out[i] = RunProgress{RunID: id, Phase: PhaseInit}
		}
		return out
	}
	out := make([]RunProgress, len(params.Simulators))
	for i, sim := range params.Simulators {
		out[i] = RunProgress{Simulator: sim, Phase: PhaseInit}
	}
	return out
}
