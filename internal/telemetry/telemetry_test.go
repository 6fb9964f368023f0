package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	// The exporter connects lazily, so an unreachable collector is fine here.
	shutdown, err := Setup(context.Background(), Config{Endpoint: "http://127.0.0.1:4318", Version: "test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions("https://otel.example.com/v1/traces"), 1)
	assert.Len(t, clientOptions("http://collector:4318"), 2)
	assert.Len(t, clientOptions("collector:4318"), 2)
}
