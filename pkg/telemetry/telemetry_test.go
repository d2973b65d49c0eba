//go:build unit || !integration

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type ctxKey struct{}

func TestDetachedContextKeepsValues(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "job-1"))
	cancel()

	detached := NewDetachedContext(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, "job-1", detached.Value(ctxKey{}))
	_, ok := detached.Deadline()
	assert.False(t, ok)
}

func TestMust(t *testing.T) {
	assert.Equal(t, 3, Must(3, nil))
	assert.Panics(t, func() { Must(0, errors.New("boom")) })
}

func TestIsMetricsEnabled(t *testing.T) {
	t.Setenv(otlpEndpoint, "")
	assert.True(t, isMetricsEnabled())

	t.Setenv(disableMetrics, "1")
	assert.False(t, isMetricsEnabled())
}

func TestCounterAndTimer(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	counter, err := NewCounter(meter, "runs", "runs started")
	require.NoError(t, err)
	counter.Inc(context.Background())
	counter.Add(context.Background(), 2)

	histogram, err := meter.Float64Histogram("duration")
	require.NoError(t, err)
	clk := clock.NewMock()
	stop := Timer(context.Background(), clk, histogram)
	clk.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, stop())
}
