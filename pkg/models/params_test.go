//go:build unit || !integration

package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
)

type ParamsTestSuite struct {
	suite.Suite
}

func TestParamsTestSuite(t *testing.T) {
	suite.Run(t, new(ParamsTestSuite))
}

func (s *ParamsTestSuite) TestNormalizeDefaultsTolerances() {
	p := models.JobParams{Simulators: []models.SimulatorRef{{ID: " copasi "}}}
	p.Normalize()
	s.Equal(models.DefaultTolerances(), p.Tolerances)
	s.Equal("copasi", p.Simulators[0].ID)

	custom := models.JobParams{Tolerances: models.Tolerances{RelTol: 0.5}}
	custom.Normalize()
	s.Equal(models.Tolerances{
		RelTol:      0.5,
		AbsTolMin:   models.DefaultAbsTolMin,
		AbsTolScale: models.DefaultAbsTolScale,
	}, custom.Tolerances)
}

func (s *ParamsTestSuite) TestValidate() {
	testCases := []struct {
		name    string
		kind    models.JobKind
		params  models.JobParams
		wantErr bool
	}{
		{
			name: "archive job",
			kind: models.JobKindArchive,
			params: models.JobParams{
				ArchiveHash: "bafk",
				Simulators:  []models.SimulatorRef{{ID: "copasi"}, {ID: "tellurium", Version: "2.2.1"}},
			},
		},
		{
			name:    "archive job without simulators",
			kind:    models.JobKindArchive,
			params:  models.JobParams{ArchiveHash: "bafk"},
			wantErr: true,
		},
		{
			name:    "archive job without archive",
			kind:    models.JobKindArchive,
			params:  models.JobParams{Simulators: []models.SimulatorRef{{ID: "copasi"}}},
			wantErr: true,
		},
		{
			name: "simulator without id",
			kind: models.JobKindArchive,
			params: models.JobParams{
				ArchiveHash: "bafk",
				Simulators:  []models.SimulatorRef{{Version: "1.0"}},
			},
			wantErr: true,
		},
		{
			name:   "run job",
			kind:   models.JobKindRuns,
			params: models.JobParams{RunIDs: []string{"a", "b"}},
		},
		{
			name:    "run job with duplicate ids",
			kind:    models.JobKindRuns,
			params:  models.JobParams{RunIDs: []string{"a", "a"}},
			wantErr: true,
		},
		{
			name:    "run job with empty id",
			kind:    models.JobKindRuns,
			params:  models.JobParams{RunIDs: []string{"a", ""}},
			wantErr: true,
		},
		{
			name:    "negative tolerance",
			kind:    models.JobKindRuns,
			params:  models.JobParams{RunIDs: []string{"a"}, Tolerances: models.Tolerances{RelTol: -1}},
			wantErr: true,
		},
		{
			name:    "unknown failure policy",
			kind:    models.JobKindRuns,
			params:  models.JobParams{RunIDs: []string{"a"}, FailurePolicy: "retry"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := tc.params.Validate(tc.kind)
			if !tc.wantErr {
				s.NoError(err)
				return
			}
			var invalid models.ErrInvalidParams
			s.True(errors.As(err, &invalid), "expected ErrInvalidParams, got %v", err)
		})
	}
}

func (s *ParamsTestSuite) TestFailurePolicyResolve() {
	s.Equal(models.FailurePolicyExclude, models.FailurePolicyDefault.Resolve(models.JobKindArchive))
	s.Equal(models.FailurePolicyAbort, models.FailurePolicyDefault.Resolve(models.JobKindRuns))
	s.Equal(models.FailurePolicyAbort, models.FailurePolicyAbort.Resolve(models.JobKindArchive))
}
