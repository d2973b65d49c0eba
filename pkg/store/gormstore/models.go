package gormstore

import (
	"gorm.io/datatypes"
)

type Archive struct {
	Hash        string `gorm:"primaryKey;size:128"`
	Filename    string
	Bucket      string
	Path        string
	Size        int64
	CreatedTime int64
}

// Run is a cached run record. The unique index on the cache key makes the
// first insert for a key win.
type Run struct {
	ID               uint   `gorm:"primaryKey"`
	ArchiveHash      string `gorm:"size:128;uniqueIndex:idx_run_key"`
	SimulatorDigest  string `gorm:"size:128;uniqueIndex:idx_run_key"`
	CacheBuster      string `gorm:"size:128;uniqueIndex:idx_run_key"`
	SimulatorID      string
	SimulatorVersion string
	RunID            string `gorm:"size:128;index"`
	Status           int
	Outputs          datatypes.JSON
	Error            string
	Revision         uint64
	CreatedTime      int64
	ModifiedTime     int64
}

type Job struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Kind          string
	Params        datatypes.JSON
	State         int `gorm:"index"`
	Error         string
	Runs          datatypes.JSON
	Results       datatypes.JSON
	WorkerID      string
	Revision      uint64
	CreatedTime   int64
	StartedTime   int64
	ModifiedTime  int64
	HeartbeatTime int64
}
