package models

import (
	"fmt"
	"strings"
)

// RunStatus is the status of a single simulation run as reported by the
// executor service.
type RunStatus int

const (
	RunStatusUndefined RunStatus = iota // must be first

	RunStatusQueued
	RunStatusRunning

	// RunStatusSkipped is reported by the executor for runs it will never start.
	RunStatusSkipped
	RunStatusSucceeded
	RunStatusFailed

	// RunStatusUnknown is an explicit status reported by the executor when it
	// lost track of a run. It is not the same as RunStatusUnrecognized.
	RunStatusUnknown

	// RunStatusRunIDNotFound is produced locally when the executor answers 404
	// for a run id.
	RunStatusRunIDNotFound

	// RunStatusUnrecognized is the decoded value of any status string outside
	// the known set.
	RunStatusUnrecognized
)

var runStatusNames = map[RunStatus]string{
	RunStatusUndefined:     "UNDEFINED",
	RunStatusQueued:        "QUEUED",
	RunStatusRunning:       "RUNNING",
	RunStatusSkipped:       "SKIPPED",
	RunStatusSucceeded:     "SUCCEEDED",
	RunStatusFailed:        "FAILED",
	RunStatusUnknown:       "UNKNOWN",
	RunStatusRunIDNotFound: "RUN_ID_NOT_FOUND",
	RunStatusUnrecognized:  "UNRECOGNIZED",
}

func (s RunStatus) String() string {
	if name, ok := runStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RunStatus(%d)", int(s))
}

// IsTerminal returns true if no further status change can be expected from
// the executor for a run in this status.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusRunIDNotFound, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// IsUndefined returns true for the zero value.
func (s RunStatus) IsUndefined() bool {
	return s == RunStatusUndefined
}

// ParseRunStatus decodes a status string. Unknown strings decode to
// RunStatusUnrecognized together with an ErrUnrecognizedState error.
func ParseRunStatus(name string) (RunStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for typ, typName := range runStatusNames {
		if typ == RunStatusUndefined || typ == RunStatusUnrecognized {
			continue
		}
		if typName == upper {
			return typ, nil
		}
	}
	return RunStatusUnrecognized, NewErrUnrecognizedState("run status", name)
}

func (s RunStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunStatus) UnmarshalText(text []byte) error {
	name := string(text)
	if name == runStatusNames[RunStatusUndefined] || name == "" {
		*s = RunStatusUndefined
		return nil
	}
	if name == runStatusNames[RunStatusUnrecognized] {
		*s = RunStatusUnrecognized
		return nil
	}
	typ, err := ParseRunStatus(name)
	*s = typ
	return err
}

// JobState is the lifecycle state of a verification job.
type JobState int

const (
	JobStateUndefined JobState = iota // must be first

	// JobStatePending jobs are persisted but not yet claimed by a worker.
	JobStatePending

	// JobStateInProgress jobs are owned by a worker that heartbeats them.
	JobStateInProgress

	JobStateCompleted
	JobStateFailed

	// JobStateRunIDNotFound ends a job when one of the caller supplied run
	// ids is unknown to the executor.
	JobStateRunIDNotFound

	JobStateUnrecognized
)

var jobStateNames = map[JobState]string{
	JobStateUndefined:     "UNDEFINED",
	JobStatePending:       "PENDING",
	JobStateInProgress:    "IN_PROGRESS",
	JobStateCompleted:     "COMPLETED",
	JobStateFailed:        "FAILED",
	JobStateRunIDNotFound: "RUN_ID_NOT_FOUND",
	JobStateUnrecognized:  "UNRECOGNIZED",
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobState(%d)", int(s))
}

// IsTerminal returns true if the given job state signals the end of the
// lifecycle of that job and that no change in the state can be expected.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateRunIDNotFound
}

func (s JobState) IsUndefined() bool {
	return s == JobStateUndefined
}

// ParseJobState decodes a job state string strictly.
func ParseJobState(name string) (JobState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for typ, typName := range jobStateNames {
		if typ == JobStateUndefined || typ == JobStateUnrecognized {
			continue
		}
		if typName == upper {
			return typ, nil
		}
	}
	return JobStateUnrecognized, NewErrUnrecognizedState("job state", name)
}

func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobState) UnmarshalText(text []byte) error {
	name := string(text)
	if name == jobStateNames[JobStateUndefined] || name == "" {
		*s = JobStateUndefined
		return nil
	}
	if name == jobStateNames[JobStateUnrecognized] {
		*s = JobStateUnrecognized
		return nil
	}
	typ, err := ParseJobState(name)
	*s = typ
	return err
}

// Phase is the position of a run controller in its state machine:
//
//	INIT -> DONE                               (cache hit)
//	INIT -> SUBMITTING -> POLLING -> DONE|FAILED
type Phase string

const (
	PhaseInit       Phase = "INIT"
	PhaseSubmitting Phase = "SUBMITTING"
	PhasePolling    Phase = "POLLING"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
