// Package simclient talks to the remote simulation services: the executor
// that runs simulations, the results service that serves their outputs and
// the simulator catalog.
package simclient

import (
	"context"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// SubmitRequest asks the executor to run an archive with one simulator.
type SubmitRequest struct {
	Name      string
	Filename  string
	Archive   []byte
	Simulator models.Simulator
}

// Executor runs simulations.
type Executor interface {
	// Submit creates a new run. It is never retried by the client.
	Submit(ctx context.Context, request SubmitRequest) (models.RunInfo, error)
	// GetRun returns the current state of a run, or ErrRunIDNotFound.
	GetRun(ctx context.Context, runID string) (models.RunInfo, error)
}

// ResultsService serves the outputs of finished runs.
type ResultsService interface {
	GetMetadata(ctx context.Context, runID string) (models.OutputMetadata, error)
	GetDataset(ctx context.Context, runID string, dataset string) (models.Dataset, error)
}

// Catalog lists the simulator builds available to the executor.
type Catalog interface {
	ListSimulatorVersions(ctx context.Context) ([]models.Simulator, error)
}
