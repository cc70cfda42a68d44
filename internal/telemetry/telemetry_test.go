package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestInstruments(t *testing.T) {
	ins, err := New(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	ctx, span := ins.StartRun(context.Background(), "run-1", "src@v2")
	assert.NotPanics(t, func() {
		ins.Frame(ctx, "main")
		ins.NodeDuration(ctx, "inv@v2", 3*time.Millisecond)
		ins.Release(ctx, "src@v2", "stats@v2")
		ins.Failure(ctx, "inv@v2")
		ins.EndRun(ctx, span, errors.New("boom"))
	})
}

func TestNew_GlobalProviders(t *testing.T) {
	ins, err := New(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, ins)
}
