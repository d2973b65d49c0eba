package gormstore

import (
	"encoding/json"
	"time"

	"github.com/opencontainers/go-digest"
	"gorm.io/datatypes"

	"github.com/bacalhau-project/simverify/pkg/models"
)

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func ArchiveToDt(a models.Archive) Archive {
	return Archive{
		Hash:        a.Hash,
		Filename:    a.Filename,
		Bucket:      a.Bucket,
		Path:        a.Path,
		Size:        a.Size,
		CreatedTime: toUnixNano(a.CreateTime),
	}
}

func ArchiveFromDt(a Archive) models.Archive {
	return models.Archive{
		Hash:       a.Hash,
		Filename:   a.Filename,
		Bucket:     a.Bucket,
		Path:       a.Path,
		Size:       a.Size,
		CreateTime: fromUnixNano(a.CreatedTime),
	}
}

func RunToDt(r models.RunRecord) (Run, error) {
	out := Run{
		ArchiveHash:      r.Key.ArchiveHash,
		SimulatorDigest:  r.Key.SimulatorDigest,
		CacheBuster:      r.Key.CacheBuster,
		SimulatorID:      r.Simulator.ID,
		SimulatorVersion: r.Simulator.Version,
		RunID:            r.RunID,
		Status:           int(r.Status),
		Error:            r.Error,
		Revision:         r.Revision,
		CreatedTime:      toUnixNano(r.CreateTime),
		ModifiedTime:     toUnixNano(r.ModifyTime),
	}
	if r.Outputs != nil {
		outputs, err := json.Marshal(r.Outputs)
		if err != nil {
			return Run{}, err
		}
		out.Outputs = datatypes.JSON(outputs)
	}
	return out, nil
}

func RunFromDt(r Run) (models.RunRecord, error) {
	out := models.RunRecord{
		Key: models.RunKey{
			ArchiveHash:     r.ArchiveHash,
			SimulatorDigest: r.SimulatorDigest,
			CacheBuster:     r.CacheBuster,
		},
		Simulator: models.Simulator{
			ID:      r.SimulatorID,
			Version: r.SimulatorVersion,
			Digest:  digest.Digest(r.SimulatorDigest),
		},
		RunID:      r.RunID,
		Status:     models.RunStatus(r.Status),
		Error:      r.Error,
		Revision:   r.Revision,
		CreateTime: fromUnixNano(r.CreatedTime),
		ModifyTime: fromUnixNano(r.ModifiedTime),
	}
	if len(r.Outputs) > 0 {
		var outputs models.OutputMetadata
		if err := json.Unmarshal(r.Outputs, &outputs); err != nil {
			return models.RunRecord{}, err
		}
		out.Outputs = &outputs
	}
	return out, nil
}

func JobToDt(j models.VerificationJob) (Job, error) {
	params, err := json.Marshal(j.Params)
	if err != nil {
		return Job{}, err
	}
	runs, err := json.Marshal(j.Runs)
	if err != nil {
		return Job{}, err
	}
	out := Job{
		ID:            j.ID,
		Kind:          string(j.Kind),
		Params:        datatypes.JSON(params),
		State:         int(j.State),
		Error:         j.Error,
		Runs:          datatypes.JSON(runs),
		WorkerID:      j.WorkerID,
		Revision:      j.Revision,
		CreatedTime:   toUnixNano(j.CreateTime),
		StartedTime:   toUnixNano(j.StartTime),
		ModifiedTime:  toUnixNano(j.ModifyTime),
		HeartbeatTime: toUnixNano(j.HeartbeatTime),
	}
	if j.Results != nil {
		results, err := json.Marshal(j.Results)
		if err != nil {
			return Job{}, err
		}
		out.Results = datatypes.JSON(results)
	}
	return out, nil
}

func JobFromDt(j Job) (models.VerificationJob, error) {
	out := models.VerificationJob{
		ID:            j.ID,
		Kind:          models.JobKind(j.Kind),
		State:         models.JobState(j.State),
		Error:         j.Error,
		WorkerID:      j.WorkerID,
		Revision:      j.Revision,
		CreateTime:    fromUnixNano(j.CreatedTime),
		StartTime:     fromUnixNano(j.StartedTime),
		ModifyTime:    fromUnixNano(j.ModifiedTime),
		HeartbeatTime: fromUnixNano(j.HeartbeatTime),
	}
	if err := json.Unmarshal(j.Params, &out.Params); err != nil {
		return models.VerificationJob{}, err
	}
	if len(j.Runs) > 0 {
		if err := json.Unmarshal(j.Runs, &out.Runs); err != nil {
			return models.VerificationJob{}, err
		}
	}
	if len(j.Results) > 0 {
		var results models.ComparisonResults
		if err := json.Unmarshal(j.Results, &results); err != nil {
			return models.VerificationJob{}, err
		}
		out.Results = &results
	}
	return out, nil
}
