package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "coding", cfg.Memory.Namespace)
	assert.Equal(t, []string{"design", "testing", "release"}, cfg.Pipeline.CheckpointPhases)
	assert.Equal(t, 1.0, cfg.Gate.PassThreshold)
	assert.Equal(t, 0.75, cfg.Learning.PatternThreshold)
	assert.Equal(t, 10*time.Second, cfg.Learning.SubmitTimeout.Duration())

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name: "telemetry endpoint required when enabled",
			mutate: func(cfg *Config) {
				cfg.Telemetry.Enabled = true
				cfg.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint",
		},
		{
			name: "sample rate out of range",
			mutate: func(cfg *Config) {
				cfg.Telemetry.Enabled = true
				cfg.Telemetry.SampleRate = 1.5
			},
			wantErr: "sample_rate",
		},
		{
			name:    "empty namespace",
			mutate:  func(cfg *Config) { cfg.Memory.Namespace = "" },
			wantErr: "memory.namespace",
		},
		{
			name:    "unknown checkpoint phase",
			mutate:  func(cfg *Config) { cfg.Pipeline.CheckpointPhases = []string{"deploy"} },
			wantErr: "unknown phase",
		},
		{
			name:    "start phase out of range",
			mutate:  func(cfg *Config) { cfg.Pipeline.StartPhase = 9 },
			wantErr: "start_phase",
		},
		{
			name: "inverted phase bounds",
			mutate: func(cfg *Config) {
				cfg.Pipeline.StartPhase = 5
				cfg.Pipeline.EndPhase = 2
			},
			wantErr: "after end_phase",
		},
		{
			name:    "pass threshold out of range",
			mutate:  func(cfg *Config) { cfg.Gate.PassThreshold = 2 },
			wantErr: "pass_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckpointPhases(t *testing.T) {
	cfg := Load()
	assert.Equal(t, []catalog.Phase{
		catalog.PhaseDesign,
		catalog.PhaseTesting,
		catalog.PhaseRelease,
	}, cfg.CheckpointPhases())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("banana")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations rejected")
}

func TestDurationMarshalJSON(t *testing.T) {
	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}

func TestValidateConfigPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.NoError(t, validateConfigPath(filepath.Join(home, ".config", "orchestd", "config.yaml")))
	assert.NoError(t, validateConfigPath("/etc/orchestd/config.yaml"))
	assert.Error(t, validateConfigPath("/tmp/config.yaml"))
	assert.Error(t, validateConfigPath(filepath.Join(home, "config.yaml")))
}

func TestValidateConfigFileProperties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  namespace: coding\n"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NoError(t, validateConfigFileProperties(info))

	require.NoError(t, os.Chmod(path, 0644))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Error(t, validateConfigFileProperties(info), "world-readable config rejected")
}
