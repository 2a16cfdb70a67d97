package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/orchestd/internal/config"
)

func TestNewDisabled(t *testing.T) {
	provider, err := New(context.Background(), &config.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestShutdownIdempotentWhenDisabled(t *testing.T) {
	provider, err := New(context.Background(), &config.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)

	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
}
