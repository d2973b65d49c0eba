//go:build unit || !integration

package compare_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/simverify/pkg/compare"
	"github.com/bacalhau-project/simverify/pkg/models"
)

func dataset(name string, labels []string, values [][]float64) models.Dataset {
	return models.Dataset{
		Name:   name,
		Labels: labels,
		Shape:  []int{len(values), len(values[0])},
		Values: values,
	}
}

func TestBuildMatrix(t *testing.T) {
	tol := models.DefaultTolerances()
	values := [][]float64{{0, 1, 2}, {math.Sin(0), math.Sin(1), math.Sin(2)}}
	runs := []compare.RunData{
		{Simulator: "A", Datasets: []models.Dataset{dataset("report", []string{"time", "x"}, values)}},
		{Simulator: "B", Datasets: []models.Dataset{dataset("report", []string{"time", "x"}, values)}},
		{Simulator: "C", Datasets: []models.Dataset{
			dataset("report", []string{"time", "z"}, values),
			dataset("extra", []string{"time"}, [][]float64{{0, 1, 2}}),
		}},
	}

	matrix := compare.BuildMatrix(runs, tol)
	require.Len(t, matrix, 2)

	report := matrix[0]
	assert.Equal(t, "report", report.Dataset)
	assert.Equal(t, []string{"A", "B", "C"}, report.Simulators)
	require.Len(t, report.Cells, 3)

	for i := range runs {
		require.Len(t, report.Cells[i], 3)
	}

	ab := report.Cells[0][1]
	assert.Empty(t, ab.Error)
	assert.Equal(t, models.Scores{0, 0}, ab.Scores)
	assert.Equal(t, []bool{true, true}, ab.Close)
	assert.Equal(t, []string{"time", "x"}, ab.Variables)

	ac := report.Cells[0][2]
	assert.NotEmpty(t, ac.Error)
	assert.Nil(t, ac.Scores)
	assert.Nil(t, ac.Close)

	cc := report.Cells[2][2]
	assert.Empty(t, cc.Error)
	assert.True(t, cc.AllClose())

	extra := matrix[1]
	assert.Equal(t, "extra", extra.Dataset)
	assert.Contains(t, extra.Cells[0][2].Error, "extra was not produced by A")
	assert.Empty(t, extra.Cells[2][2].Error)
}

func TestCompareCellLabelMismatch(t *testing.T) {
	values := [][]float64{{1, 2}, {3, 4}}
	a := compare.RunData{Simulator: "A", Datasets: []models.Dataset{dataset("d", []string{"x", "y"}, values)}}
	b := compare.RunData{Simulator: "B", Datasets: []models.Dataset{dataset("d", []string{"x", "z"}, values)}}

	cell := compare.CompareCell("d", a, b, models.DefaultTolerances())
	assert.NotEmpty(t, cell.Error)
	assert.Nil(t, cell.Scores)
	assert.Nil(t, cell.Close)
}

func TestCompareCellShapeMismatch(t *testing.T) {
	a := compare.RunData{Simulator: "A", Datasets: []models.Dataset{dataset("d", nil, [][]float64{{1, 2}})}}
	b := compare.RunData{Simulator: "B", Datasets: []models.Dataset{dataset("d", nil, [][]float64{{1, 2, 3}})}}

	cell := compare.CompareCell("d", a, b, models.DefaultTolerances())
	assert.Contains(t, cell.Error, "differ")
}
