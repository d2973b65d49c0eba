package catalog

import (
	"fmt"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// ErrSimulatorNotFound is returned when the catalog has no matching simulator build.
type ErrSimulatorNotFound struct {
	ID      string
	Version string
}

func NewErrSimulatorNotFound(id, version string) ErrSimulatorNotFound {
	return ErrSimulatorNotFound{ID: id, Version: version}
}

func (e ErrSimulatorNotFound) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("simulator %s not found in catalog", e.ID)
	}
	return fmt.Sprintf("simulator %s version %s not found in catalog", e.ID, e.Version)
}

// ErrInvalidSimulator is returned when a catalog entry cannot identify a
// simulator build, e.g. it has no image digest.
type ErrInvalidSimulator struct {
	Simulator models.Simulator
	Err       error
}

func NewErrInvalidSimulator(sim models.Simulator, err error) ErrInvalidSimulator {
	return ErrInvalidSimulator{Simulator: sim, Err: err}
}

func (e ErrInvalidSimulator) Error() string {
	return fmt.Sprintf("catalog entry of simulator %s is invalid: %s", e.Simulator, e.Err)
}

func (e ErrInvalidSimulator) Unwrap() error {
	return e.Err
}
