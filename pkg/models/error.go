package models

import "fmt"

// ErrUnrecognizedState is returned when a status string received from a
// collaborator or read back from storage is outside the known set.
type ErrUnrecognizedState struct {
	Kind  string
	Value string
}

func NewErrUnrecognizedState(kind, value string) ErrUnrecognizedState {
	return ErrUnrecognizedState{Kind: kind, Value: value}
}

func (e ErrUnrecognizedState) Error() string {
	return fmt.Sprintf("unrecognized %s %q", e.Kind, e.Value)
}

// ErrInvalidParams is returned when verification parameters fail validation.
type ErrInvalidParams struct {
	Reason string
}

func NewErrInvalidParams(format string, args ...any) ErrInvalidParams {
	return ErrInvalidParams{Reason: fmt.Sprintf(format, args...)}
}

func (e ErrInvalidParams) Error() string {
	return "invalid verification parameters: " + e.Reason
}
