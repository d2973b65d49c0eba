//go:build unit || !integration

package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
)

type EngineTestSuite struct {
	suite.Suite
	tol models.Tolerances
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.tol = models.Tolerances{RelTol: 1e-4, AbsTolMin: 1e-3, AbsTolScale: 1e-5}
}

func sineWave(n int, phase float64) [][]float64 {
	t := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = float64(i) / 10
		y[i] = math.Sin(t[i] + phase)
	}
	return [][]float64{t, y}
}

func referenceFixture() [][]float64 {
	return [][]float64{
		{0, 250, 500, 750, 1000},
		{14.08511649077246, 20.5, 33.25, 41.0, 48.75},
	}
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

func (s *EngineTestSuite) TestIdenticalMatricesScoreZero() {
	a := sineWave(200, 0)
	b := copyMatrix(a)

	res, err := Compare(a, b, s.tol)
	s.Require().NoError(err)
	s.Equal([]float64{0, 0}, res.Scores)
	s.Equal([]bool{true, true}, res.Close)
}

func (s *EngineTestSuite) TestReferenceFixturePerturbation() {
	original := referenceFixture()
	perturbed := copyMatrix(original)
	perturbed[0][0] = 999.0
	perturbed[1][0] = 52.0

	res, err := Compare(perturbed, original, s.tol)
	s.Require().NoError(err)
	s.Equal([]bool{false, false}, res.Close)
	s.InDelta(99900.0, res.Scores[0], 1e-6)
	s.InDelta(15742.038666806353, res.Scores[1], 1e-6)
}

func (s *EngineTestSuite) TestAsymmetry() {
	a := [][]float64{{1, 2}}
	b := [][]float64{{1, 1}}

	ab, err := Compare(a, b, s.tol)
	s.Require().NoError(err)
	ba, err := Compare(b, a, s.tol)
	s.Require().NoError(err)

	s.InDelta(1/(1e-3+1e-4), ab.Scores[0], 1e-9)
	s.InDelta(1/(1e-3+2e-4), ba.Scores[0], 1e-9)
	s.NotEqual(ab.Scores[0], ba.Scores[0])
}

func (s *EngineTestSuite) TestCloseIsScoreBelowOne() {
	b := sineWave(50, 0)
	for _, phase := range []float64{0, 1e-7, 1e-5, 1e-3, 0.1, 1} {
		a := sineWave(50, phase)
		res, err := Compare(a, b, s.tol)
		s.Require().NoError(err)
		for k := range res.Scores {
			s.Equal(res.Scores[k] < 1.0, res.Close[k], "phase %v row %d", phase, k)
		}
	}
}

func (s *EngineTestSuite) TestNaNHandling() {
	nan := math.NaN()

	// NaN columns are skipped by the max reduction
	res, err := Compare([][]float64{{nan, 1, 2}}, [][]float64{{nan, 1, 2}}, s.tol)
	s.Require().NoError(err)
	s.Equal(0.0, res.Scores[0])
	s.True(res.Close[0])

	// a NaN on one side still lets the other columns decide
	res, err = Compare([][]float64{{nan, 1, 3}}, [][]float64{{5, 1, 2}}, s.tol)
	s.Require().NoError(err)
	s.InDelta(1/(1e-3+2e-4), res.Scores[0], 1e-9)
	s.False(res.Close[0])

	// nothing comparable leaves a NaN score, which is not close
	res, err = Compare([][]float64{{nan, nan}}, [][]float64{{nan, nan}}, s.tol)
	s.Require().NoError(err)
	s.True(math.IsNaN(res.Scores[0]))
	s.False(res.Close[0])
}

func (s *EngineTestSuite) TestZeroToleranceDivision() {
	res, err := Compare([][]float64{{1, 0}}, [][]float64{{0, 0}}, models.Tolerances{})
	s.Require().NoError(err)
	s.True(math.IsInf(res.Scores[0], 1))
	s.False(res.Close[0])
}

func (s *EngineTestSuite) TestShapeErrors() {
	_, err := Compare([][]float64{{1, 2}}, [][]float64{{1, 2}, {3, 4}}, s.tol)
	var mismatch ErrShapeMismatch
	s.True(errors.As(err, &mismatch))
	s.Equal([]int{1, 2}, mismatch.ShapeA)
	s.Equal([]int{2, 2}, mismatch.ShapeB)

	_, err = Compare([][]float64{{1, 2}, {3}}, [][]float64{{1, 2}, {3, 4}}, s.tol)
	var invalid ErrInvalidShape
	s.True(errors.As(err, &invalid))

	_, err = Compare(nil, nil, s.tol)
	s.True(errors.As(err, &invalid))

	_, err = Compare([][]float64{{}}, [][]float64{{}}, s.tol)
	s.True(errors.As(err, &invalid))
}

func TestNanMax(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 3.0, nanMax([]float64{1, nan, 3, 2}))
	assert.Equal(t, -1.0, nanMax([]float64{nan, -1}))
	require.True(t, math.IsNaN(nanMax(nil)))
	require.True(t, math.IsNaN(nanMax([]float64{nan})))
	assert.Equal(t, 1e-3, maxOf(1e-3, nan, nan))
	assert.Equal(t, 2.0, maxOf(1e-3, nan, 2))
}
