package compare

import (
	"slices"

	"github.com/samber/lo"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// RunData is the fetched output of one successful run.
type RunData struct {
	// Simulator is the display name of the simulator that produced the run.
	Simulator string
	RunID     string
	Datasets  []models.Dataset
}

func (r RunData) dataset(name string) (models.Dataset, bool) {
	return lo.Find(r.Datasets, func(d models.Dataset) bool { return d.Name == name })
}

// DatasetNames returns the names of every dataset produced by at least one
// run, in order of first appearance.
func DatasetNames(runs []RunData) []string {
	return lo.Uniq(lo.FlatMap(runs, func(r RunData, _ int) []string {
		return lo.Map(r.Datasets, func(d models.Dataset, _ int) string { return d.Name })
	}))
}

// BuildMatrix compares every ordered pair of runs for every dataset. Cell
// [i][j] scores runs[i] against runs[j]. Incomparable pairs get a cell error
// instead of scores; they never fail the whole matrix.
func BuildMatrix(runs []RunData, tol models.Tolerances) []models.DatasetComparison {
	simulators := lo.Map(runs, func(r RunData, _ int) string { return r.Simulator })
	names := DatasetNames(runs)

	out := make([]models.DatasetComparison, 0, len(names))
	for _, name := range names {
		cells := make([][]models.ComparisonCell, len(runs))
		for i := range runs {
			cells[i] = make([]models.ComparisonCell, len(runs))
			for j := range runs {
				cells[i][j] = CompareCell(name, runs[i], runs[j], tol)
			}
		}
		out = append(out, models.DatasetComparison{
			Dataset:    name,
			Simulators: simulators,
			Cells:      cells,
		})
	}
	return out
}

// CompareCell compares dataset name of run a against run b.
func CompareCell(name string, a, b RunData, tol models.Tolerances) models.ComparisonCell {
	cell := models.ComparisonCell{SimulatorA: a.Simulator, SimulatorB: b.Simulator}

	dsA, ok := a.dataset(name)
	if !ok {
		cell.Error = NewErrMissingDataset(name, a.Simulator).Error()
		return cell
	}
	dsB, ok := b.dataset(name)
	if !ok {
		cell.Error = NewErrMissingDataset(name, b.Simulator).Error()
		return cell
	}
	if !slices.Equal(dsA.Labels, dsB.Labels) {
		cell.Error = NewErrLabelMismatch(dsA.Labels, dsB.Labels).Error()
		return cell
	}

	res, err := Compare(dsA.Values, dsB.Values, tol)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	cell.Variables = dsA.Labels
	cell.Scores = res.Scores
	cell.Close = res.Close
	return cell
}
