// Package fake is an in-memory stand in for the remote simulation services.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
)

// Behaviour scripts how runs of one simulator progress.
type Behaviour struct {
	// Polls is the number of GetRun calls answered RUNNING before the final status.
	Polls       int
	FinalStatus models.RunStatus
	Datasets    []models.Dataset
	// SubmitErr fails the submission.
	SubmitErr error
	// PollErrs are returned by the first GetRun calls, in order.
	PollErrs []error
	// Block makes GetRun wait until the context is done.
	Block bool
}

type run struct {
	info      models.RunInfo
	behaviour Behaviour
	polls     int
}

// Service implements the executor, results and catalog interfaces.
type Service struct {
	mu         sync.Mutex
	simulators []models.Simulator
	behaviours map[string]Behaviour
	runs       map[string]*run
	nextID     atomic.Int64

	submissions atomic.Int64
	catalogHits atomic.Int64
}

func NewService(simulators ...models.Simulator) *Service {
	return &Service{
		simulators: simulators,
		behaviours: make(map[string]Behaviour),
		runs:       make(map[string]*run),
	}
}

// SetBehaviour scripts the runs submitted for a simulator id.
func (s *Service) SetBehaviour(simulatorID string, b Behaviour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviours[simulatorID] = b
}

// AddRun registers a run that exists before any submission.
func (s *Service) AddRun(runID string, simulator models.Simulator, b Behaviour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = &run{
		info: models.RunInfo{
			RunID:            runID,
			Status:           models.RunStatusQueued,
			Simulator:        simulator.ID,
			SimulatorVersion: simulator.Version,
		},
		behaviour: b,
	}
}

// Submissions returns the number of accepted and rejected submissions.
func (s *Service) Submissions() int {
	return int(s.submissions.Load())
}

// CatalogHits returns the number of catalog listings served.
func (s *Service) CatalogHits() int {
	return int(s.catalogHits.Load())
}

func (s *Service) Submit(_ context.Context, request simclient.SubmitRequest) (models.RunInfo, error) {
	s.submissions.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.behaviours[request.Simulator.ID]
	if !ok {
		b = Behaviour{FinalStatus: models.RunStatusSucceeded}
	}
	if b.SubmitErr != nil {
		return models.RunInfo{}, b.SubmitErr
	}
	id := fmt.Sprintf("run-%d", s.nextID.Inc())
	r := &run{
		info: models.RunInfo{
			RunID:            id,
			Status:           models.RunStatusQueued,
			Simulator:        request.Simulator.ID,
			SimulatorVersion: request.Simulator.Version,
		},
		behaviour: b,
	}
	s.runs[id] = r
	return r.info, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (models.RunInfo, error) {
	s.mu.Lock()
	r, ok := s.runs[runID]
	if !ok {
		s.mu.Unlock()
		return models.RunInfo{}, simclient.NewErrRunIDNotFound(runID)
	}
	if r.behaviour.Block {
		s.mu.Unlock()
		<-ctx.Done()
		return models.RunInfo{}, ctx.Err()
	}
	defer s.mu.Unlock()

	r.polls++
	if r.polls <= len(r.behaviour.PollErrs) {
		return models.RunInfo{}, r.behaviour.PollErrs[r.polls-1]
	}
	switch {
	case r.polls-len(r.behaviour.PollErrs) > r.behaviour.Polls:
		r.info.Status = r.behaviour.FinalStatus
	default:
		r.info.Status = models.RunStatusRunning
	}
	return r.info, nil
}

func (s *Service) datasets(runID string) ([]models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, simclient.NewErrRunIDNotFound(runID)
	}
	return r.behaviour.Datasets, nil
}

func (s *Service) GetMetadata(_ context.Context, runID string) (models.OutputMetadata, error) {
	datasets, err := s.datasets(runID)
	if err != nil {
		return models.OutputMetadata{}, err
	}
	return models.OutputMetadata{Datasets: lo.Map(datasets, func(d models.Dataset, _ int) models.DatasetMetadata {
		return models.DatasetMetadata{Name: d.Name, Shape: d.Shape, Labels: d.Labels}
	})}, nil
}

func (s *Service) GetDataset(_ context.Context, runID string, dataset string) (models.Dataset, error) {
	datasets, err := s.datasets(runID)
	if err != nil {
		return models.Dataset{}, err
	}
	d, ok := lo.Find(datasets, func(d models.Dataset) bool { return d.Name == dataset })
	if !ok {
		return models.Dataset{}, simclient.NewErrUnexpectedStatus("results: getting dataset", 404, dataset)
	}
	return models.Dataset{Name: d.Name, Shape: d.Shape, Values: d.Values}, nil
}

func (s *Service) ListSimulatorVersions(_ context.Context) ([]models.Simulator, error) {
	s.catalogHits.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Simulator(nil), s.simulators...), nil
}

// compile time checks whether the Service implements the service interfaces.
var (
	_ simclient.Executor       = (*Service)(nil)
	_ simclient.ResultsService = (*Service)(nil)
	_ simclient.Catalog        = (*Service)(nil)
)
