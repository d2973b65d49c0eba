package types

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"go.uber.org/multierr"
)

type SimverifyConfig struct {
	Logging      LoggingConfig      `yaml:"Logging"`
	Store        StoreConfig        `yaml:"Store"`
	Blob         BlobConfig         `yaml:"Blob"`
	Services     ServicesConfig     `yaml:"Services"`
	Controller   ControllerConfig   `yaml:"Controller"`
	Orchestrator OrchestratorConfig `yaml:"Orchestrator"`
	Catalog      CatalogConfig      `yaml:"Catalog"`
	Telemetry    TelemetryConfig    `yaml:"Telemetry"`
}

func (cfg SimverifyConfig) Validate() error {
	return multierr.Combine(
		cfg.Logging.Validate(),
		cfg.Store.Validate(),
		cfg.Blob.Validate(),
		cfg.Services.Validate(),
		cfg.Controller.Validate(),
		cfg.Orchestrator.Validate(),
	)
}

type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"Level"`
	// Mode is one of default, json, combined.
	Mode string `yaml:"Mode"`
}

func (cfg LoggingConfig) Validate() error {
	switch cfg.Mode {
	case "default", "json", "combined":
		return nil
	default:
		return fmt.Errorf("unknown logging mode: %q", cfg.Mode)
	}
}

const (
	StoreTypeInMemory = "inmemory"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
	StoreTypeMySQL    = "mysql"
)

type StoreConfig struct {
	Type string `yaml:"Type"`
	// DSN is the data source name of sql stores. For sqlite it is the path
	// of the database file.
	DSN          string `yaml:"DSN"`
	MaxOpenConns int    `yaml:"MaxOpenConns"`
	MaxIdleConns int    `yaml:"MaxIdleConns"`
}

func (cfg StoreConfig) Validate() error {
	var err error
	switch cfg.Type {
	case StoreTypeInMemory:
		return nil
	case StoreTypeSQLite, StoreTypePostgres, StoreTypeMySQL:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown store type: %q", cfg.Type))
	}
	if cfg.DSN == "" {
		err = multierr.Append(err, fmt.Errorf("store dsn is missing"))
	}
	if cfg.MaxOpenConns <= 0 {
		err = multierr.Append(err, fmt.Errorf("store max open connections must be positive"))
	}
	return err
}

const (
	BlobTypeLocal = "local"
	BlobTypeS3    = "s3"
)

type BlobConfig struct {
	Type string `yaml:"Type"`
	// Path is the root directory of the local blob store.
	Path string   `yaml:"Path"`
	S3   S3Config `yaml:"S3"`
	// MaxArchiveSize rejects larger uploads. Zero disables the limit.
	MaxArchiveSize datasize.ByteSize `yaml:"MaxArchiveSize"`
}

type S3Config struct {
	Bucket          string `yaml:"Bucket"`
	Endpoint        string `yaml:"Endpoint"`
	Region          string `yaml:"Region"`
	AccessKeyID     string `yaml:"AccessKeyID"`
	SecretAccessKey string `yaml:"SecretAccessKey"`
}

func (cfg BlobConfig) Validate() error {
	switch cfg.Type {
	case BlobTypeLocal:
		if cfg.Path == "" {
			return fmt.Errorf("local blob store path is missing")
		}
	case BlobTypeS3:
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("s3 blob store bucket is missing")
		}
	default:
		return fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
	return nil
}

type ServicesConfig struct {
	ExecutorURL string `yaml:"ExecutorURL"`
	ResultsURL  string `yaml:"ResultsURL"`
	CatalogURL  string `yaml:"CatalogURL"`
	// RetryMax bounds the transport level retries of idempotent requests.
	RetryMax       int      `yaml:"RetryMax"`
	RequestTimeout Duration `yaml:"RequestTimeout"`
}

func (cfg ServicesConfig) Validate() error {
	var err error
	if cfg.ExecutorURL == "" {
		err = multierr.Append(err, fmt.Errorf("executor url is missing"))
	}
	if cfg.ResultsURL == "" {
		err = multierr.Append(err, fmt.Errorf("results url is missing"))
	}
	if cfg.CatalogURL == "" {
		err = multierr.Append(err, fmt.Errorf("catalog url is missing"))
	}
	if cfg.RetryMax < 0 {
		err = multierr.Append(err, fmt.Errorf("retry max cannot be negative"))
	}
	return err
}

type ControllerConfig struct {
	PollInterval         Duration `yaml:"PollInterval"`
	SubmitTimeout        Duration `yaml:"SubmitTimeout"`
	PollTimeout          Duration `yaml:"PollTimeout"`
	MetadataTimeout      Duration `yaml:"MetadataTimeout"`
	ExecutionTimeout     Duration `yaml:"ExecutionTimeout"`
	MaxTransientAttempts int      `yaml:"MaxTransientAttempts"`
	BackoffBase          Duration `yaml:"BackoffBase"`
	BackoffMax           Duration `yaml:"BackoffMax"`
}

func (cfg ControllerConfig) Validate() error {
	var err error
	if cfg.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("poll interval must be positive"))
	}
	if cfg.ExecutionTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("execution timeout must be positive"))
	}
	if cfg.MaxTransientAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("max transient attempts must be positive"))
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		err = multierr.Append(err, fmt.Errorf("backoff max %s is below backoff base %s", cfg.BackoffMax, cfg.BackoffBase))
	}
	return err
}

type OrchestratorConfig struct {
	// Workers is the number of jobs run in parallel by one process.
	Workers int `yaml:"Workers"`
	// MaxConcurrentControllers bounds the controllers of one job. Zero means no limit.
	MaxConcurrentControllers int      `yaml:"MaxConcurrentControllers"`
	ClaimInterval            Duration `yaml:"ClaimInterval"`
	HeartbeatInterval        Duration `yaml:"HeartbeatInterval"`
	HeartbeatTimeout         Duration `yaml:"HeartbeatTimeout"`
	HousekeepingInterval     Duration `yaml:"HousekeepingInterval"`
	DatasetTimeout           Duration `yaml:"DatasetTimeout"`
}

func (cfg OrchestratorConfig) Validate() error {
	var err error
	if cfg.Workers <= 0 {
		err = multierr.Append(err, fmt.Errorf("orchestrator needs at least one worker"))
	}
	if cfg.MaxConcurrentControllers < 0 {
		err = multierr.Append(err, fmt.Errorf("max concurrent controllers cannot be negative"))
	}
	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		err = multierr.Append(err, fmt.Errorf("heartbeat timeout %s must exceed heartbeat interval %s",
			cfg.HeartbeatTimeout, cfg.HeartbeatInterval))
	}
	return err
}

type CatalogConfig struct {
	// TTL is how long the simulator listing is cached.
	TTL Duration `yaml:"TTL"`
}

type TelemetryConfig struct {
	// MetricsDisabled turns off the OTLP metrics exporter.
	MetricsDisabled bool `yaml:"MetricsDisabled"`
}
