package telemetry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Timer starts measuring on clk. The returned func records the elapsed
// seconds on histogram and returns the elapsed time.
func Timer(
	ctx context.Context,
	clk clock.Clock,
	histogram metric.Float64Histogram,
	attrs ...attribute.KeyValue,
) func() time.Duration {
	start := clk.Now()
	return func() time.Duration {
		elapsed := clk.Since(start)
		histogram.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
		return elapsed
	}
}
