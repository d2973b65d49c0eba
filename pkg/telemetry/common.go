// Package telemetry sets up OpenTelemetry metrics for the service.
package telemetry

import (
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/bacalhau-project/simverify/pkg/version"
)

const serviceName = "simverify"

// SetupFromEnvs installs a global meter provider when an OTLP endpoint is
// configured in the environment.
func SetupFromEnvs() {
	newMeterProvider()

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Err(err).Msg("Error occurred while exporting metrics")
	}))
}

// Cleanup flushes the remaining metrics in memory to the exporter and releases any telemetry resources.
func Cleanup() error {
	var err error
	if meterError := cleanupMeterProvider(); meterError != nil {
		err = multierror.Append(err, meterError)
	}
	return err
}

// newResource returns a resource describing this application.
func newResource() *resource.Resource {
	res, err := resource.Merge(
		resource.Environment(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version.GITVERSION),
		),
	)

	if err != nil {
		log.Error().Err(err).Msg("failed to create otel resource. Falling back to default resource config")
		res = resource.Default()
	}
	return res
}
