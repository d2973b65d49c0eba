package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bacalhau-project/simverify/pkg/contentcache"
	"github.com/bacalhau-project/simverify/pkg/lib/backoff"
	"github.com/bacalhau-project/simverify/pkg/lib/validate"
	"github.com/bacalhau-project/simverify/pkg/simclient"
)

const (
	DefaultPollInterval         = 3 * time.Second
	DefaultSubmitTimeout        = 60 * time.Second
	DefaultPollTimeout          = 60 * time.Second
	DefaultMetadataTimeout      = 5 * time.Minute
	DefaultExecutionTimeout     = 10 * time.Minute
	DefaultMaxTransientAttempts = 30
	DefaultBackoffBase          = time.Second
	DefaultBackoffMax           = 30 * time.Second
)

// Params holds the collaborators and limits shared by every controller.
type Params struct {
	Cache    *contentcache.Cache
	Resolver SimulatorResolver
	Executor simclient.Executor
	Results  simclient.ResultsService
	Clock    clock.Clock
	Backoff  backoff.Backoff
	Timeouts Timeouts
	// MaxTransientAttempts bounds consecutive transient polling failures.
	MaxTransientAttempts int
}

// Timeouts bounds the network calls and the end to end run of a controller.
type Timeouts struct {
	PollInterval time.Duration
	Submit       time.Duration
	Poll         time.Duration
	Metadata     time.Duration
	Execution    time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		PollInterval: DefaultPollInterval,
		Submit:       DefaultSubmitTimeout,
		Poll:         DefaultPollTimeout,
		Metadata:     DefaultMetadataTimeout,
		Execution:    DefaultExecutionTimeout,
	}
}

// withDefaults fills unset fields and validates the result.
func (p Params) withDefaults() (Params, error) {
	defaults := DefaultTimeouts()
	if p.Timeouts.PollInterval == 0 {
		p.Timeouts.PollInterval = defaults.PollInterval
	}
	if p.Timeouts.Submit == 0 {
		p.Timeouts.Submit = defaults.Submit
	}
	if p.Timeouts.Poll == 0 {
		p.Timeouts.Poll = defaults.Poll
	}
	if p.Timeouts.Metadata == 0 {
		p.Timeouts.Metadata = defaults.Metadata
	}
	if p.Timeouts.Execution == 0 {
		p.Timeouts.Execution = defaults.Execution
	}
	if p.MaxTransientAttempts == 0 {
		p.MaxTransientAttempts = DefaultMaxTransientAttempts
	}
	if p.Backoff == nil {
		p.Backoff = backoff.NewExponential(DefaultBackoffBase, DefaultBackoffMax)
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}

	err := errors.Join(
		validate.NotNil(p.Cache, "content cache cannot be nil"),
		validate.NotNil(p.Resolver, "simulator resolver cannot be nil"),
		validate.NotNil(p.Executor, "executor cannot be nil"),
		validate.NotNil(p.Results, "results service cannot be nil"),
		validate.IsGreaterThanZero(p.MaxTransientAttempts, "max transient attempts must be greater than zero"),
	)
	if err != nil {
		return Params{}, fmt.Errorf("error validating controller params: %w", err)
	}
	return p, nil
}
