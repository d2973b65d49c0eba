package orchestrator

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/bacalhau-project/simverify/pkg/compare"
	"github.com/bacalhau-project/simverify/pkg/controller"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/telemetry"
)

// runData is a successful run together with its downloaded datasets.
type runData struct {
	outcome  controller.Outcome
	datasets []models.Dataset
	err      error
}

// fetchRunData downloads every dataset of every run concurrently. Failures
// are kept per run.
func (o *Orchestrator) fetchRunData(ctx context.Context, outcomes []controller.Outcome) []runData {
	out := make([]runData, len(outcomes))
	var g errgroup.Group
	if o.maxConcurrent > 0 {
		g.SetLimit(o.maxConcurrent)
	}
	for i, outcome := range outcomes {
		i, outcome := i, outcome
		g.Go(func() error {
			datasets, err := o.fetchDatasets(ctx, outcome.Record)
			out[i] = runData{outcome: outcome, datasets: datasets, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) fetchDatasets(ctx context.Context, record models.RunRecord) ([]models.Dataset, error) {
	if record.Outputs == nil {
		return nil, NewErrFetchingDatasets(record.RunID, fmt.Errorf("run has no output catalog"))
	}
	datasets := make([]models.Dataset, 0, len(record.Outputs.Datasets))
	for _, meta := range record.Outputs.Datasets {
		fetchCtx, cancel := context.WithTimeout(ctx, o.datasetTimeout)
		dataset, err := o.results.GetDataset(fetchCtx, record.RunID, meta.Name)
		cancel()
		if err != nil {
			return nil, NewErrFetchingDatasets(record.RunID, err)
		}
		if len(dataset.Labels) == 0 {
			dataset.Labels = meta.Labels
		}
		if len(dataset.Shape) == 0 {
			dataset.Shape = meta.Shape
		}
		if err = dataset.Validate(); err != nil {
			return nil, NewErrFetchingDatasets(record.RunID, err)
		}
		datasets = append(datasets, dataset)
	}
	return datasets, nil
}

// compare builds the comparison matrix of the fetched runs.
func (o *Orchestrator) compare(ctx context.Context, params models.JobParams, runs []runData) *models.ComparisonResults {
	labels := runLabels(lo.Map(runs, func(r runData, _ int) models.RunProgress { return r.outcome.Progress }))
	data := make([]compare.RunData, len(runs))
	for i, r := range runs {
		data[i] = compare.RunData{
			Simulator: labels[i],
			RunID:     r.outcome.Record.RunID,
			Datasets:  r.datasets,
		}
	}

	stop := telemetry.Timer(ctx, o.clock, comparisonDuration)
	results := &models.ComparisonResults{Datasets: compare.BuildMatrix(data, params.Tolerances)}
	stop()

	if params.IncludeOutputs {
		results.Outputs = lo.Map(data, func(d compare.RunData, _ int) models.RunOutputs {
			return models.RunOutputs{Simulator: d.Simulator, RunID: d.RunID, Datasets: d.Datasets}
		})
	}
	return results
}

// runLabels names the runs of a matrix after their simulators. Runs sharing a
// simulator are told apart by their run id.
func runLabels(progress []models.RunProgress) []string {
	counts := lo.CountValuesBy(progress, func(p models.RunProgress) string { return p.Simulator.String() })
	return lo.Map(progress, func(p models.RunProgress, _ int) string {
		label := p.Simulator.String()
		if counts[label] > 1 {
			return fmt.Sprintf("%s (%s)", label, p.RunID)
		}
		return label
	})
}
