package compare

import "fmt"

// ErrShapeMismatch is returned when two matrices cannot be compared element wise.
type ErrShapeMismatch struct {
	ShapeA []int
	ShapeB []int
}

func NewErrShapeMismatch(a, b []int) ErrShapeMismatch {
	return ErrShapeMismatch{ShapeA: a, ShapeB: b}
}

func (e ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shapes %v and %v differ", e.ShapeA, e.ShapeB)
}

// ErrInvalidShape is returned when a matrix is not a regular two dimensional array.
type ErrInvalidShape struct {
	Reason string
}

func NewErrInvalidShape(format string, args ...any) ErrInvalidShape {
	return ErrInvalidShape{Reason: fmt.Sprintf(format, args...)}
}

func (e ErrInvalidShape) Error() string {
	return "invalid matrix: " + e.Reason
}

// ErrLabelMismatch is returned when two runs name their variables differently.
type ErrLabelMismatch struct {
	LabelsA []string
	LabelsB []string
}

func NewErrLabelMismatch(a, b []string) ErrLabelMismatch {
	return ErrLabelMismatch{LabelsA: a, LabelsB: b}
}

func (e ErrLabelMismatch) Error() string {
	return fmt.Sprintf("variable labels %q and %q differ", e.LabelsA, e.LabelsB)
}

// ErrMissingDataset is returned when a run did not produce a dataset another run did.
type ErrMissingDataset struct {
	Dataset   string
	Simulator string
}

func NewErrMissingDataset(dataset, simulator string) ErrMissingDataset {
	return ErrMissingDataset{Dataset: dataset, Simulator: simulator}
}

func (e ErrMissingDataset) Error() string {
	return fmt.Sprintf("dataset %s was not produced by %s", e.Dataset, e.Simulator)
}
