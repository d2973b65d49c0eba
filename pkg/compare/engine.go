// Package compare scores the closeness of simulation results under a combined
// relative and absolute tolerance.
package compare

import (
	"math"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// Result holds one score and one verdict per variable row.
type Result struct {
	Scores []float64
	Close  []bool
}

// Compare scores every variable row k of a against the same row of b:
//
//	atol_k  = max(absTolMin, nanmax(a[k])*absTolScale, nanmax(b[k])*absTolScale)
//	score_k = nanmax(|a[k]-b[k]| / (atol_k + relTol*|b[k]|))
//	close_k = score_k < 1
//
// The relative term only scales with b, so Compare(a, b) and Compare(b, a)
// can differ. NaN elements are skipped by the max reductions but propagate
// through the element wise arithmetic.
func Compare(a, b [][]float64, tol models.Tolerances) (Result, error) {
	shapeA, err := Shape(a)
	if err != nil {
		return Result{}, err
	}
	shapeB, err := Shape(b)
	if err != nil {
		return Result{}, err
	}
	if shapeA[0] != shapeB[0] || shapeA[1] != shapeB[1] {
		return Result{}, NewErrShapeMismatch(shapeA, shapeB)
	}

	res := Result{
		Scores: make([]float64, len(a)),
		Close:  make([]bool, len(a)),
	}
	for k := range a {
		res.Scores[k] = scoreRow(a[k], b[k], tol)
		res.Close[k] = res.Scores[k] < 1.0
	}
	return res, nil
}

func scoreRow(a, b []float64, tol models.Tolerances) float64 {
	atol := maxOf(tol.AbsTolMin, nanMax(a)*tol.AbsTolScale, nanMax(b)*tol.AbsTolScale)
	ratios := make([]float64, len(a))
	for i := range a {
		ratios[i] = math.Abs(a[i]-b[i]) / (atol + tol.RelTol*math.Abs(b[i]))
	}
	return nanMax(ratios)
}

// Shape returns the [rows, columns] shape of a matrix. Empty, ragged and
// column-less matrices are rejected.
func Shape(m [][]float64) ([]int, error) {
	if len(m) == 0 {
		return nil, NewErrInvalidShape("no rows")
	}
	cols := len(m[0])
	if cols == 0 {
		return nil, NewErrInvalidShape("no columns")
	}
	for i, row := range m {
		if len(row) != cols {
			return nil, NewErrInvalidShape("row %d has %d columns, row 0 has %d", i, len(row), cols)
		}
	}
	return []int{len(m), cols}, nil
}

// nanMax returns the largest non-NaN value, or NaN when there is none.
func nanMax(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}

// maxOf keeps the first argument unless a later one compares greater, so a
// NaN candidate never wins.
func maxOf(first float64, rest ...float64) float64 {
	out := first
	for _, v := range rest {
		if v > out {
			out = v
		}
	}
	return out
}
