package simclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// ErrRunIDNotFound is returned when a service does not know a run id. It is a
// definitive answer and never retried.
type ErrRunIDNotFound struct {
	RunID string
}

func NewErrRunIDNotFound(runID string) ErrRunIDNotFound {
	return ErrRunIDNotFound{RunID: runID}
}

func (e ErrRunIDNotFound) Error() string {
	return "run id not found: " + e.RunID
}

// ErrUnexpectedStatus is returned when a service answers with an unexpected
// HTTP status code.
type ErrUnexpectedStatus struct {
	Operation  string
	StatusCode int
	Body       string
}

func NewErrUnexpectedStatus(operation string, statusCode int, body string) ErrUnexpectedStatus {
	return ErrUnexpectedStatus{Operation: operation, StatusCode: statusCode, Body: body}
}

func (e ErrUnexpectedStatus) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Transient returns true for server side and throttling failures.
func (e ErrUnexpectedStatus) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient returns true if retrying the failed call may succeed.
// Unrecognized run statuses count as transient so they consume a retry budget
// instead of being silently mapped to a known status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var notFound ErrRunIDNotFound
	if errors.As(err, &notFound) {
		return false
	}
	var status ErrUnexpectedStatus
	if errors.As(err, &status) {
		return status.Transient()
	}
	var unrecognized models.ErrUnrecognizedState
	if errors.As(err, &unrecognized) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsNotFound returns true if err reports an unknown run id.
func IsNotFound(err error) bool {
	var notFound ErrRunIDNotFound
	return errors.As(err, &notFound)
}
