package models

import (
	"fmt"
	"time"
)

// RunKey identifies one execution attempt of one simulator against one archive.
// Changing the CacheBuster forces a new execution for an otherwise identical key.
type RunKey struct {
	ArchiveHash     string `json:"ArchiveHash"`
	SimulatorDigest string `json:"SimulatorDigest"`
	CacheBuster     string `json:"CacheBuster,omitempty"`
}

func (k RunKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ArchiveHash, k.SimulatorDigest, k.CacheBuster)
}

// RunRecord is the cached record of a simulation run. It is owned by a single
// controller until it reaches a terminal status and is immutable afterwards.
type RunRecord struct {
	Key       RunKey    `json:"Key"`
	Simulator Simulator `json:"Simulator"`
	// RunID is the id assigned by the external executor.
	RunID  string    `json:"RunID"`
	Status RunStatus `json:"Status"`
	// Outputs is the dataset catalog of a SUCCEEDED run.
	Outputs    *OutputMetadata `json:"Outputs,omitempty"`
	Error      string          `json:"Error,omitempty"`
	Revision   uint64          `json:"Revision"`
	CreateTime time.Time       `json:"CreateTime"`
	ModifyTime time.Time       `json:"ModifyTime"`
}

// IsTerminal returns true if the record can no longer change.
func (r RunRecord) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// IsUsable returns true if the record can be served as a cache hit.
func (r RunRecord) IsUsable() bool {
	return r.Status == RunStatusSucceeded && r.Outputs != nil
}

// RunInfo is what the executor reports about a run.
type RunInfo struct {
	RunID            string    `json:"RunID"`
	Status           RunStatus `json:"Status"`
	Simulator        string    `json:"Simulator,omitempty"`
	SimulatorVersion string    `json:"SimulatorVersion,omitempty"`
}
