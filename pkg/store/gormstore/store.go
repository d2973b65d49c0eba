package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

const maxClaimAttempts = 5

func New(opts ...ConfigOpt) (*Store, error) {
	cfg := NewDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(cfg.Dialect, &gorm.Config{
		// GORM perform single create, update, delete operations in transactions by default to ensure database data integrity
		// You can disable it by setting `SkipDefaultTransaction` to true
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 cfg.Logger,
		NowFunc:                cfg.Clock.Now,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdlConns)

	if err := db.AutoMigrate(&Archive{}, &Run{}, &Job{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, clock: cfg.Clock}, nil
}

type Store struct {
	DB    *gorm.DB
	clock clock.Clock
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

//
// Archive operations
//

func (s *Store) GetArchive(ctx context.Context, hash string) (models.Archive, error) {
	var row Archive
	res := s.DB.WithContext(ctx).Where("hash = ?", hash).Limit(1).Find(&row)
	if res.Error != nil {
		return models.Archive{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Archive{}, store.NewErrArchiveNotFound(hash)
	}
	return ArchiveFromDt(row), nil
}

func (s *Store) CreateArchive(ctx context.Context, archive models.Archive) error {
	if archive.CreateTime.IsZero() {
		archive.CreateTime = s.clock.Now().UTC()
	}
	row := ArchiveToDt(archive)
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return store.NewErrArchiveAlreadyExists(archive.Hash)
		}
		return err
	}
	return nil
}

func (s *Store) DeleteArchive(ctx context.Context, hash string) error {
	res := s.DB.WithContext(ctx).Where("hash = ?", hash).Delete(&Archive{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NewErrArchiveNotFound(hash)
	}
	return nil
}

//
// Run operations
//

func whereRunKey(db *gorm.DB, key models.RunKey) *gorm.DB {
	return db.Where("archive_hash = ? AND simulator_digest = ? AND cache_buster = ?",
		key.ArchiveHash, key.SimulatorDigest, key.CacheBuster)
}

func (s *Store) FindRuns(ctx context.Context, key models.RunKey) ([]models.RunRecord, error) {
	var rows []Run
	if err := whereRunKey(s.DB.WithContext(ctx), key).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.RunRecord, 0, len(rows))
	for _, row := range rows {
		r, err := RunFromDt(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) GetRunByRunID(ctx context.Context, runID string) (models.RunRecord, error) {
	var row Run
	res := s.DB.WithContext(ctx).Where("run_id = ?", runID).Order("id desc").Limit(1).Find(&row)
	if res.Error != nil {
		return models.RunRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.RunRecord{}, store.NewErrRunNotFound(runID)
	}
	return RunFromDt(row)
}

func (s *Store) CreateRun(ctx context.Context, run models.RunRecord) (models.RunRecord, error) {
	now := s.clock.Now().UTC()
	run.Revision = 1
	run.CreateTime = now
	run.ModifyTime = now
	row, err := RunToDt(run)
	if err != nil {
		return models.RunRecord{}, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := whereRunKey(tx.Model(&Run{}), run.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.NewErrRunAlreadyExists(run.Key)
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicateKey(err) {
				return store.NewErrRunAlreadyExists(run.Key)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.RunRecord{}, err
	}
	return run, nil
}

func (s *Store) UpdateRun(ctx context.Context, request store.UpdateRunRequest) (models.RunRecord, error) {
	var updated models.RunRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Run
		res := whereRunKey(tx, request.Key).Order("id asc").Limit(1).Find(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.NewErrRunNotFound(request.Key.String())
		}
		existing, err := RunFromDt(row)
		if err != nil {
			return err
		}
		if err = request.Condition.Validate(existing); err != nil {
			return err
		}
		if existing.IsTerminal() {
			return store.NewErrRunAlreadyTerminal(existing.Key, existing.Status, request.NewValues.Status)
		}

		updated = store.ApplyRunUpdate(existing, request.NewValues)
		updated.Revision = existing.Revision + 1
		updated.ModifyTime = s.clock.Now().UTC()
		newRow, err := RunToDt(updated)
		if err != nil {
			return err
		}
		res = tx.Model(&Run{}).
			Where("id = ? AND revision = ?", row.ID, row.Revision).
			Updates(map[string]interface{}{
				"run_id":        newRow.RunID,
				"status":        newRow.Status,
				"outputs":       newRow.Outputs,
				"error":         newRow.Error,
				"revision":      newRow.Revision,
				"modified_time": newRow.ModifiedTime,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.NewErrInvalidRunRevision(existing.Key, existing.Revision+1, existing.Revision)
		}
		return nil
	})
	if err != nil {
		return models.RunRecord{}, err
	}
	return updated, nil
}

func (s *Store) DeleteRun(ctx context.Context, key models.RunKey) error {
	res := whereRunKey(s.DB.WithContext(ctx), key).Delete(&Run{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NewErrRunNotFound(key.String())
	}
	return nil
}

//
// Job operations
//

func (s *Store) CreateJob(ctx context.Context, job models.VerificationJob) (models.VerificationJob, error) {
	now := s.clock.Now().UTC()
	job.ID = 0
	job.State = models.JobStatePending
	job.Revision = 1
	job.CreateTime = now
	job.ModifyTime = now
	row, err := JobToDt(job)
	if err != nil {
		return models.VerificationJob{}, err
	}
	if err = s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return models.VerificationJob{}, err
	}
	job.ID = row.ID
	return job, nil
}

func (s *Store) getJobRow(tx *gorm.DB, id uint64) (Job, error) {
	var row Job
	res := tx.Where("id = ?", id).Limit(1).Find(&row)
	if res.Error != nil {
		return Job{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Job{}, store.NewErrJobNotFound(id)
	}
	return row, nil
}

func (s *Store) GetJob(ctx context.Context, id uint64) (models.VerificationJob, error) {
	row, err := s.getJobRow(s.DB.WithContext(ctx), id)
	if err != nil {
		return models.VerificationJob{}, err
	}
	return JobFromDt(row)
}

func (s *Store) UpdateJob(ctx context.Context, request store.UpdateJobRequest) (models.VerificationJob, error) {
	var updated models.VerificationJob
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.getJobRow(tx, request.JobID)
		if err != nil {
			return err
		}
		existing, err := JobFromDt(row)
		if err != nil {
			return err
		}
		if err = request.Condition.Validate(existing); err != nil {
			return err
		}
		if existing.IsTerminal() {
			return store.NewErrJobAlreadyTerminal(existing.ID, existing.State, request.NewValues.State)
		}

		updated = store.ApplyJobUpdate(existing, request.NewValues.Copy())
		updated.Revision = existing.Revision + 1
		updated.ModifyTime = s.clock.Now().UTC()
		newRow, err := JobToDt(updated)
		if err != nil {
			return err
		}
		res := tx.Model(&Job{}).
			Where("id = ? AND revision = ?", row.ID, row.Revision).
			Updates(map[string]interface{}{
				"state":          newRow.State,
				"error":          newRow.Error,
				"runs":           newRow.Runs,
				"results":        newRow.Results,
				"worker_id":      newRow.WorkerID,
				"started_time":   newRow.StartedTime,
				"heartbeat_time": newRow.HeartbeatTime,
				"revision":       newRow.Revision,
				"modified_time":  newRow.ModifiedTime,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.NewErrInvalidJobRevision(existing.ID, existing.Revision+1, existing.Revision)
		}
		return nil
	})
	if err != nil {
		return models.VerificationJob{}, err
	}
	return updated, nil
}

func (s *Store) ClaimPendingJob(ctx context.Context, workerID string) (models.VerificationJob, bool, error) {
	db := s.DB.WithContext(ctx)
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var row Job
		res := db.Where("state = ?", int(models.JobStatePending)).Order("id asc").Limit(1).Find(&row)
		if res.Error != nil {
			return models.VerificationJob{}, false, res.Error
		}
		if res.RowsAffected == 0 {
			return models.VerificationJob{}, false, nil
		}

		now := s.clock.Now().UTC().UnixNano()
		res = db.Model(&Job{}).
			Where("id = ? AND state = ? AND revision = ?", row.ID, int(models.JobStatePending), row.Revision).
			Updates(map[string]interface{}{
				"state":          int(models.JobStateInProgress),
				"worker_id":      workerID,
				"started_time":   now,
				"heartbeat_time": now,
				"modified_time":  now,
				"revision":       row.Revision + 1,
			})
		if res.Error != nil {
			return models.VerificationJob{}, false, res.Error
		}
		if res.RowsAffected == 0 {
			// another worker claimed it first
			continue
		}
		row.State = int(models.JobStateInProgress)
		row.WorkerID = workerID
		row.StartedTime = now
		row.HeartbeatTime = now
		row.ModifiedTime = now
		row.Revision++
		job, err := JobFromDt(row)
		return job, err == nil, err
	}
	return models.VerificationJob{}, false, nil
}

func (s *Store) GetInProgressJobs(ctx context.Context) ([]models.VerificationJob, error) {
	var rows []Job
	if err := s.DB.WithContext(ctx).
		Where("state = ?", int(models.JobStateInProgress)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.VerificationJob, 0, len(rows))
	for _, row := range rows {
		j, err := JobFromDt(row)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) Heartbeat(ctx context.Context, id uint64) error {
	db := s.DB.WithContext(ctx)
	res := db.Model(&Job{}).
		Where("id = ? AND state = ?", id, int(models.JobStateInProgress)).
		Update("heartbeat_time", s.clock.Now().UTC().UnixNano())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	row, err := s.getJobRow(db, id)
	if err != nil {
		return err
	}
	if models.JobState(row.State) == models.JobStateInProgress {
		// unchanged timestamp, some drivers report no affected rows
		return nil
	}
	return store.NewErrInvalidJobState(id, models.JobState(row.State), models.JobStateInProgress)
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// compile time check whether the Store implements the Store interface.
var _ store.Store = (*Store)(nil)
