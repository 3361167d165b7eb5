package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"

	"github.com/mrzor/exec-monitor/internal/config"
)

func TestInitProvider_DisabledIsNoop(t *testing.T) {
	tp, shutdown, err := InitProvider(context.Background(), &config.OTELConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitProvider_Enabled(t *testing.T) {
	cfg := &config.OTELConfig{
		ServiceName:        "test",
		ExporterEndpoint:   "127.0.0.1:4318",
		ResourceAttributes: "env=test",
	}

	tp, shutdown, err := InitProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.IsRecording())

	// nothing was ended, so shutdown has nothing to export
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions("collector:4318"), 3)
	assert.Len(t, exporterOptions("https://collector:4318/v1/traces"), 2)
}

func TestShutdownProvider_Nil(t *testing.T) {
	assert.NoError(t, ShutdownProvider(nil, context.Background()))
}
