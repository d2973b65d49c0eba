package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultRelTol      = 1e-4
	DefaultAbsTolMin   = 1e-3
	DefaultAbsTolScale = 1e-5
)

// Tolerances parameterise the comparison score. A zero field takes its
// default when the params are normalized.
type Tolerances struct {
	RelTol      float64 `json:"RelTol" validate:"gte=0"`
	AbsTolMin   float64 `json:"AbsTolMin" validate:"gte=0"`
	AbsTolScale float64 `json:"AbsTolScale" validate:"gte=0"`
}

// DefaultTolerances returns the tolerances used when a caller leaves them unset.
func DefaultTolerances() Tolerances {
	return Tolerances{
		RelTol:      DefaultRelTol,
		AbsTolMin:   DefaultAbsTolMin,
		AbsTolScale: DefaultAbsTolScale,
	}
}

// WithDefaults returns t with every unset field replaced by its default.
func (t Tolerances) WithDefaults() Tolerances {
	if t.RelTol == 0 {
		t.RelTol = DefaultRelTol
	}
	if t.AbsTolMin == 0 {
		t.AbsTolMin = DefaultAbsTolMin
	}
	if t.AbsTolScale == 0 {
		t.AbsTolScale = DefaultAbsTolScale
	}
	return t
}

// JobParams are the caller supplied inputs of a verification job.
type JobParams struct {
	// ArchiveHash references an archive already stored in the content cache.
	ArchiveHash string `json:"ArchiveHash,omitempty"`
	// Simulators to run the archive with, used by archive jobs.
	Simulators []SimulatorRef `json:"Simulators,omitempty" validate:"dive"`
	// RunIDs are executor run ids, used by run comparison jobs.
	RunIDs []string `json:"RunIDs,omitempty" validate:"dive,required"`
	// CacheBuster forces re-execution of otherwise cached runs.
	CacheBuster    string        `json:"CacheBuster,omitempty"`
	Tolerances     Tolerances    `json:"Tolerances"`
	IncludeOutputs bool          `json:"IncludeOutputs,omitempty"`
	FailurePolicy  FailurePolicy `json:"FailurePolicy,omitempty" validate:"omitempty,oneof=abort exclude"`
}

// Normalize fills defaults in place.
func (p *JobParams) Normalize() {
	p.Tolerances = p.Tolerances.WithDefaults()
	for i := range p.Simulators {
		p.Simulators[i].ID = strings.TrimSpace(p.Simulators[i].ID)
		p.Simulators[i].Version = strings.TrimSpace(p.Simulators[i].Version)
	}
	for i := range p.RunIDs {
		p.RunIDs[i] = strings.TrimSpace(p.RunIDs[i])
	}
}

func (p JobParams) Copy() JobParams {
	out := p
	if p.Simulators != nil {
		out.Simulators = append([]SimulatorRef(nil), p.Simulators...)
	}
	if p.RunIDs != nil {
		out.RunIDs = append([]string(nil), p.RunIDs...)
	}
	return out
}

var validate = validator.New()

// Validate checks the params of a job of the given kind.
func (p JobParams) Validate(kind JobKind) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return NewErrInvalidParams("%s", strings.Join(msgs, "; "))
		}
		return NewErrInvalidParams("%s", err.Error())
	}

	switch kind {
	case JobKindArchive:
		if p.ArchiveHash == "" {
			return NewErrInvalidParams("an archive is required")
		}
		if len(p.Simulators) == 0 {
			return NewErrInvalidParams("at least one simulator is required")
		}
		if len(p.RunIDs) > 0 {
			return NewErrInvalidParams("run ids cannot be combined with an archive")
		}
	case JobKindRuns:
		if len(p.RunIDs) == 0 {
			return NewErrInvalidParams("at least one run id is required")
		}
		if len(p.Simulators) > 0 {
			return NewErrInvalidParams("simulators cannot be requested for existing runs")
		}
		seen := make(map[string]struct{}, len(p.RunIDs))
		for _, id := range p.RunIDs {
			if _, ok := seen[id]; ok {
				return NewErrInvalidParams("run id %s is listed twice", id)
			}
			seen[id] = struct{}{}
		}
	default:
		return NewErrInvalidParams("unknown job kind %q", kind)
	}
	return nil
}
