package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"golang.org/x/exp/maps"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

type InMemoryStore struct {
	// archives is a map of content hash to archive
	archives map[string]models.Archive
	// runs is a map of run key to run record
	runs map[models.RunKey]models.RunRecord
	// runIDs is a map of executor run id to run key
	runIDs map[string]models.RunKey
	// jobs is a map of job id to job
	jobs      map[uint64]models.VerificationJob
	lastJobID uint64
	mtx       sync.RWMutex
	clock     clock.Clock
}

type Option func(store *InMemoryStore)

func WithClock(clock clock.Clock) Option {
	return func(store *InMemoryStore) {
		store.clock = clock
	}
}

func NewInMemoryStore(options ...Option) *InMemoryStore {
	res := &InMemoryStore{
		archives: make(map[string]models.Archive),
		runs:     make(map[models.RunKey]models.RunRecord),
		runIDs:   make(map[string]models.RunKey),
		jobs:     make(map[uint64]models.VerificationJob),
		clock:    clock.New(),
	}
	for _, opt := range options {
		opt(res)
	}
	return res
}

//
// Archive operations
//

func (d *InMemoryStore) GetArchive(_ context.Context, hash string) (models.Archive, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	a, ok := d.archives[hash]
	if !ok {
		return models.Archive{}, store.NewErrArchiveNotFound(hash)
	}
	return a, nil
}

func (d *InMemoryStore) CreateArchive(_ context.Context, archive models.Archive) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.archives[archive.Hash]; ok {
		return store.NewErrArchiveAlreadyExists(archive.Hash)
	}
	if archive.CreateTime.IsZero() {
		archive.CreateTime = d.clock.Now().UTC()
	}
	d.archives[archive.Hash] = archive
	return nil
}

func (d *InMemoryStore) DeleteArchive(_ context.Context, hash string) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.archives[hash]; !ok {
		return store.NewErrArchiveNotFound(hash)
	}
	delete(d.archives, hash)
	return nil
}

//
// Run operations
//

func (d *InMemoryStore) FindRuns(_ context.Context, key models.RunKey) ([]models.RunRecord, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if r, ok := d.runs[key]; ok {
		return []models.RunRecord{r}, nil
	}
	return []models.RunRecord{}, nil
}

func (d *InMemoryStore) GetRunByRunID(_ context.Context, runID string) (models.RunRecord, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	key, ok := d.runIDs[runID]
	if !ok {
		return models.RunRecord{}, store.NewErrRunNotFound(runID)
	}
	return d.runs[key], nil
}

func (d *InMemoryStore) CreateRun(_ context.Context, run models.RunRecord) (models.RunRecord, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.runs[run.Key]; ok {
		return models.RunRecord{}, store.NewErrRunAlreadyExists(run.Key)
	}
	now := d.clock.Now().UTC()
	run.Revision = 1
	run.CreateTime = now
	run.ModifyTime = now
	d.runs[run.Key] = run
	if run.RunID != "" {
		d.runIDs[run.RunID] = run.Key
	}
	return run, nil
}

func (d *InMemoryStore) UpdateRun(_ context.Context, request store.UpdateRunRequest) (models.RunRecord, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	existing, ok := d.runs[request.Key]
	if !ok {
		return models.RunRecord{}, store.NewErrRunNotFound(request.Key.String())
	}
	if err := request.Condition.Validate(existing); err != nil {
		return models.RunRecord{}, err
	}
	if existing.IsTerminal() {
		return models.RunRecord{}, store.NewErrRunAlreadyTerminal(existing.Key, existing.Status, request.NewValues.Status)
	}

	updated := store.ApplyRunUpdate(existing, request.NewValues)
	updated.Revision = existing.Revision + 1
	updated.ModifyTime = d.clock.Now().UTC()
	d.runs[request.Key] = updated
	if updated.RunID != "" {
		d.runIDs[updated.RunID] = updated.Key
	}
	return updated, nil
}

func (d *InMemoryStore) DeleteRun(_ context.Context, key models.RunKey) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	existing, ok := d.runs[key]
	if !ok {
		return store.NewErrRunNotFound(key.String())
	}
	delete(d.runs, key)
	if existing.RunID != "" && d.runIDs[existing.RunID] == key {
		delete(d.runIDs, existing.RunID)
	}
	return nil
}

//
// Job operations
//

func (d *InMemoryStore) CreateJob(_ context.Context, job models.VerificationJob) (models.VerificationJob, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	now := d.clock.Now().UTC()
	d.lastJobID++
	job.ID = d.lastJobID
	job.State = models.JobStatePending
	job.Revision = 1
	job.CreateTime = now
	job.ModifyTime = now
	job = job.Copy()
	d.jobs[job.ID] = job
	return job.Copy(), nil
}

func (d *InMemoryStore) GetJob(_ context.Context, id uint64) (models.VerificationJob, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	j, ok := d.jobs[id]
	if !ok {
		return models.VerificationJob{}, store.NewErrJobNotFound(id)
	}
	return j.Copy(), nil
}

func (d *InMemoryStore) UpdateJob(_ context.Context, request store.UpdateJobRequest) (models.VerificationJob, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	existing, ok := d.jobs[request.JobID]
	if !ok {
		return models.VerificationJob{}, store.NewErrJobNotFound(request.JobID)
	}
	if err := request.Condition.Validate(existing); err != nil {
		return models.VerificationJob{}, err
	}
	if existing.IsTerminal() {
		return models.VerificationJob{}, store.NewErrJobAlreadyTerminal(existing.ID, existing.State, request.NewValues.State)
	}

	updated := store.ApplyJobUpdate(existing, request.NewValues.Copy())
	updated.Revision = existing.Revision + 1
	updated.ModifyTime = d.clock.Now().UTC()
	d.jobs[updated.ID] = updated
	return updated.Copy(), nil
}

func (d *InMemoryStore) ClaimPendingJob(_ context.Context, workerID string) (models.VerificationJob, bool, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	ids := maps.Keys(d.jobs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		j := d.jobs[id]
		if j.State != models.JobStatePending {
			continue
		}
		now := d.clock.Now().UTC()
		j.State = models.JobStateInProgress
		j.WorkerID = workerID
		j.StartTime = now
		j.HeartbeatTime = now
		j.ModifyTime = now
		j.Revision++
		d.jobs[id] = j
		return j.Copy(), true, nil
	}
	return models.VerificationJob{}, false, nil
}

func (d *InMemoryStore) GetInProgressJobs(_ context.Context) ([]models.VerificationJob, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	var out []models.VerificationJob
	for _, j := range d.jobs {
		if j.State == models.JobStateInProgress {
			out = append(out, j.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *InMemoryStore) Heartbeat(_ context.Context, id uint64) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	j, ok := d.jobs[id]
	if !ok {
		return store.NewErrJobNotFound(id)
	}
	if j.State != models.JobStateInProgress {
		return store.NewErrInvalidJobState(id, j.State, models.JobStateInProgress)
	}
	j.HeartbeatTime = d.clock.Now().UTC()
	d.jobs[id] = j
	return nil
}

func (d *InMemoryStore) Close(_ context.Context) error {
	return nil
}

// compile time check whether the InMemoryStore implements the Store interface.
var _ store.Store = (*InMemoryStore)(nil)
