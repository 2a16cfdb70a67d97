// Package config provides configuration loading for orchestd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

// Config is the root orchestd configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Memory    MemoryConfig    `koanf:"memory"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Gate      GateConfig      `koanf:"gate"`
	Learning  LearningConfig  `koanf:"learning"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// TelemetryConfig controls the OTLP exporters.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	MetricInterval Duration `koanf:"metric_interval"`
	ShutdownGrace  Duration `koanf:"shutdown_grace"`
}

// MemoryConfig controls the memory coordinator.
type MemoryConfig struct {
	// Namespace prefixes every key the pipeline persists.
	Namespace string `koanf:"namespace"`
}

// PipelineConfig controls the phase scheduler.
type PipelineConfig struct {
	// CheckpointPhases lists phases checkpointed at entry.
	CheckpointPhases []string `koanf:"checkpoint_phases"`

	// StartPhase and EndPhase bound the run, 1-indexed inclusive.
	// Zero means unbounded on that side.
	StartPhase int `koanf:"start_phase"`
	EndPhase   int `koanf:"end_phase"`

	// AgentTimeout bounds each agent invocation; zero disables it.
	AgentTimeout Duration `koanf:"agent_timeout"`

	// PipelineTimeout bounds the whole run; zero disables it.
	PipelineTimeout Duration `koanf:"pipeline_timeout"`
}

// GateConfig controls verdict derivation in the forensic gate.
type GateConfig struct {
	PassThreshold        float64 `koanf:"pass_threshold"`
	MissingEvidenceRatio float64 `koanf:"missing_evidence_ratio"`
	HighConfidenceRatio  float64 `koanf:"high_confidence_ratio"`
	LowConfidenceRatio   float64 `koanf:"low_confidence_ratio"`
}

// LearningConfig controls the learning bridge.
type LearningConfig struct {
	Enabled          bool     `koanf:"enabled"`
	PatternThreshold float64  `koanf:"pattern_threshold"`
	SubmitTimeout    Duration `koanf:"submit_timeout"`
}

// applyDefaults fills zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "orchestd"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.MetricInterval == 0 {
		cfg.Telemetry.MetricInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.ShutdownGrace == 0 {
		cfg.Telemetry.ShutdownGrace = Duration(5 * time.Second)
	}

	if cfg.Memory.Namespace == "" {
		cfg.Memory.Namespace = "coding"
	}

	if len(cfg.Pipeline.CheckpointPhases) == 0 {
		cfg.Pipeline.CheckpointPhases = []string{
			string(catalog.PhaseDesign),
			string(catalog.PhaseTesting),
			string(catalog.PhaseRelease),
		}
	}

	if cfg.Gate.PassThreshold == 0 {
		cfg.Gate.PassThreshold = 1.0
	}
	if cfg.Gate.MissingEvidenceRatio == 0 {
		cfg.Gate.MissingEvidenceRatio = 0.5
	}
	if cfg.Gate.HighConfidenceRatio == 0 {
		cfg.Gate.HighConfidenceRatio = 0.8
	}
	if cfg.Gate.LowConfidenceRatio == 0 {
		cfg.Gate.LowConfidenceRatio = 0.5
	}

	if cfg.Learning.PatternThreshold == 0 {
		cfg.Learning.PatternThreshold = 0.75
	}
	if cfg.Learning.SubmitTimeout == 0 {
		cfg.Learning.SubmitTimeout = Duration(10 * time.Second)
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	if c.Memory.Namespace == "" {
		return fmt.Errorf("memory.namespace cannot be empty")
	}

	for _, name := range c.Pipeline.CheckpointPhases {
		if !catalog.Phase(name).Valid() {
			return fmt.Errorf("pipeline.checkpoint_phases contains unknown phase %q", name)
		}
	}
	phaseCount := len(catalog.AllPhases())
	if c.Pipeline.StartPhase < 0 || c.Pipeline.StartPhase > phaseCount {
		return fmt.Errorf("pipeline.start_phase must be in [0,%d], got %d", phaseCount, c.Pipeline.StartPhase)
	}
	if c.Pipeline.EndPhase < 0 || c.Pipeline.EndPhase > phaseCount {
		return fmt.Errorf("pipeline.end_phase must be in [0,%d], got %d", phaseCount, c.Pipeline.EndPhase)
	}
	if c.Pipeline.StartPhase > 0 && c.Pipeline.EndPhase > 0 && c.Pipeline.StartPhase > c.Pipeline.EndPhase {
		return fmt.Errorf("pipeline.start_phase %d after end_phase %d", c.Pipeline.StartPhase, c.Pipeline.EndPhase)
	}

	if c.Gate.PassThreshold < 0 || c.Gate.PassThreshold > 1 {
		return fmt.Errorf("gate.pass_threshold must be between 0 and 1, got %f", c.Gate.PassThreshold)
	}
	if c.Learning.PatternThreshold < 0 || c.Learning.PatternThreshold > 1 {
		return fmt.Errorf("learning.pattern_threshold must be between 0 and 1, got %f", c.Learning.PatternThreshold)
	}
	return nil
}

// CheckpointPhases returns the configured checkpoint phases as catalog
// phases. Call after Validate.
func (c *Config) CheckpointPhases() []catalog.Phase {
	phases := make([]catalog.Phase, len(c.Pipeline.CheckpointPhases))
	for i, name := range c.Pipeline.CheckpointPhases {
		phases[i] = catalog.Phase(name)
	}
	return phases
}
