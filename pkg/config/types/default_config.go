package types

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	Second = Duration(time.Second)
	Minute = Duration(time.Minute)
	Hour   = Duration(time.Hour)
)

var Default = SimverifyConfig{
	Logging: LoggingConfig{
		Level: "info",
		Mode:  "default",
	},
	Store: StoreConfig{
		Type:         StoreTypeSQLite,
		DSN:          "simverify.db",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	},
	Blob: BlobConfig{
		Type:           BlobTypeLocal,
		Path:           "blobs",
		MaxArchiveSize: 256 * datasize.MB,
	},
	Services: ServicesConfig{
		ExecutorURL:    "http://localhost:8080",
		ResultsURL:     "http://localhost:8080",
		CatalogURL:     "http://localhost:8080",
		RetryMax:       3,
		RequestTimeout: 30 * Second,
	},
	Controller: ControllerConfig{
		PollInterval:         3 * Second,
		SubmitTimeout:        60 * Second,
		PollTimeout:          60 * Second,
		MetadataTimeout:      5 * Minute,
		ExecutionTimeout:     10 * Minute,
		MaxTransientAttempts: 30,
		BackoffBase:          Second,
		BackoffMax:           30 * Second,
	},
	Orchestrator: OrchestratorConfig{
		Workers:                  4,
		MaxConcurrentControllers: 8,
		ClaimInterval:            Second,
		HeartbeatInterval:        10 * Second,
		HeartbeatTimeout:         2 * Minute,
		HousekeepingInterval:     30 * Second,
		DatasetTimeout:           5 * Minute,
	},
	Catalog: CatalogConfig{
		TTL: Hour,
	},
}
