package contentcache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bacalhau-project/simverify/pkg/telemetry"
)

var (
	Meter = otel.GetMeterProvider().Meter("contentcache")

	archiveUploads = telemetry.Must(telemetry.NewCounter(Meter,
		"archive.upload", "Archive uploads, labelled by whether the content was already stored"))

	runLookups = telemetry.Must(telemetry.NewCounter(Meter,
		"run.lookup", "Run cache lookups, labelled by outcome"))
)

func deduplicated(v bool) attribute.KeyValue {
	return attribute.Bool("deduplicated", v)
}

func lookupResult(result string) attribute.KeyValue {
	return attribute.String("result", result)
}
