package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/telemetry"
)

var (
	Meter = otel.GetMeterProvider().Meter("orchestrator")
)

// Job lifecycle metrics
var (
	jobsSubmitted = telemetry.Must(Meter.Int64Counter(
		"job.submitted",
		metric.WithDescription("Verification jobs persisted as pending"),
		metric.WithUnit("1"),
	))

	jobsFinished = telemetry.Must(Meter.Int64Counter(
		"job.finished",
		metric.WithDescription("Verification jobs that reached a terminal state"),
		metric.WithUnit("1"),
	))

	controllerOutcomes = telemetry.Must(Meter.Int64Counter(
		"controller.outcome",
		metric.WithDescription("Run controllers that reached a terminal phase"),
		metric.WithUnit("1"),
	))

	comparisonDuration = telemetry.Must(Meter.Float64Histogram(
		"comparison.duration",
		metric.WithDescription("Time taken to build the comparison matrix of a job"),
		metric.WithUnit("s"),
	))

	// WorkerClaimFaults counts failures to claim pending jobs.
	WorkerClaimFaults = telemetry.Must(Meter.Int64Counter(
		"worker.claim.faults",
		metric.WithDescription("Failures to claim a pending job"),
		metric.WithUnit("1"),
	))
)

const (
	AttrJobKind  = "job_kind"
	AttrJobState = "job_state"
	AttrPhase    = "phase"
	AttrStatus   = "status"
	AttrCached   = "cached"
)

func jobKindAttribute(kind models.JobKind) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrJobKind, string(kind)))
}

func jobFinishedAttributes(kind models.JobKind, state models.JobState) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(AttrJobKind, string(kind)),
		attribute.String(AttrJobState, state.String()),
	)
}

func outcomeAttributes(progress models.RunProgress) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(AttrPhase, string(progress.Phase)),
		attribute.String(AttrStatus, progress.Status.String()),
		attribute.Bool(AttrCached, progress.Cached),
	)
}
