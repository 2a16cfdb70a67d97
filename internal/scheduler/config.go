package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/dag"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("scheduler: invalid execution config")

// QualityFn supplies an optional measured quality breakdown for a phase's
// forensic review. A nil return means no breakdown is available.
type QualityFn func(phase catalog.Phase) *forensics.QualityBreakdown

// ExecutionConfig describes one pipeline run.
type ExecutionConfig struct {
	// Phases is the ordered phase list for the full pipeline.
	Phases []catalog.Phase

	// AgentsByPhase maps each phase to its agent mappings, reviewers
	// included.
	AgentsByPhase map[catalog.Phase][]catalog.AgentMapping

	// DAG is the validated dependency graph over all agents.
	DAG *dag.PipelineDAG

	// MemoryNamespace prefixes every key the run persists.
	MemoryNamespace string

	// CheckpointPhases lists the phases checkpointed at entry.
	CheckpointPhases []catalog.Phase

	// StartPhase and EndPhase bound the run, 1-indexed inclusive against
	// Phases. Zero means unbounded on that side.
	StartPhase int
	EndPhase   int

	// AgentTimeout bounds each agent invocation; zero disables it.
	AgentTimeout time.Duration

	// PipelineTimeout bounds the whole run; zero disables it.
	PipelineTimeout time.Duration

	// QualityFn optionally supplies measured quality numbers to the
	// forensic gate per phase.
	QualityFn QualityFn
}

// DefaultCheckpointPhases returns the phases checkpointed by default: the
// boundaries where rework is most expensive to lose.
func DefaultCheckpointPhases() []catalog.Phase {
	return []catalog.Phase{catalog.PhaseDesign, catalog.PhaseTesting, catalog.PhaseRelease}
}

// DefaultExecutionConfig builds a full-pipeline config over the static
// catalog.
func DefaultExecutionConfig() (*ExecutionConfig, error) {
	mappings := catalog.Default()
	checkpoints := DefaultCheckpointPhases()

	graph, err := dag.Build(mappings, checkpoints)
	if err != nil {
		return nil, err
	}

	byPhase := make(map[catalog.Phase][]catalog.AgentMapping)
	for _, m := range mappings {
		byPhase[m.Phase] = append(byPhase[m.Phase], m)
	}

	return &ExecutionConfig{
		Phases:           catalog.AllPhases(),
		AgentsByPhase:    byPhase,
		DAG:              graph,
		MemoryNamespace:  "coding",
		CheckpointPhases: checkpoints,
	}, nil
}

// Validate checks the config before any execution side effect occurs.
func (c *ExecutionConfig) Validate() error {
	if len(c.Phases) == 0 && (c.StartPhase > 0 || c.EndPhase > 0) {
		return fmt.Errorf("%w: phase bounds set on an empty phase list", ErrInvalidConfig)
	}
	if c.DAG == nil {
		return fmt.Errorf("%w: missing dependency graph", ErrInvalidConfig)
	}
	if c.MemoryNamespace == "" {
		return fmt.Errorf("%w: missing memory namespace", ErrInvalidConfig)
	}

	seen := make(map[catalog.Phase]bool, len(c.Phases))
	for _, p := range c.Phases {
		if !p.Valid() {
			return fmt.Errorf("%w: unknown phase %q", ErrInvalidConfig, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate phase %q", ErrInvalidConfig, p)
		}
		seen[p] = true
	}

	for phase, agents := range c.AgentsByPhase {
		for _, m := range agents {
			if _, ok := c.DAG.Nodes[m.Key]; !ok {
				return fmt.Errorf("%w: agent %q in phase %q is not in the graph", ErrInvalidConfig, m.Key, phase)
			}
		}
	}

	if c.StartPhase < 0 || c.EndPhase < 0 {
		return fmt.Errorf("%w: negative phase bound", ErrInvalidConfig)
	}
	if c.StartPhase > 0 && c.StartPhase > len(c.Phases) {
		return fmt.Errorf("%w: start phase %d exceeds %d phases", ErrInvalidConfig, c.StartPhase, len(c.Phases))
	}
	if c.EndPhase > 0 && c.EndPhase > len(c.Phases) {
		return fmt.Errorf("%w: end phase %d exceeds %d phases", ErrInvalidConfig, c.EndPhase, len(c.Phases))
	}
	if c.StartPhase > 0 && c.EndPhase > 0 && c.StartPhase > c.EndPhase {
		return fmt.Errorf("%w: start phase %d after end phase %d", ErrInvalidConfig, c.StartPhase, c.EndPhase)
	}
	return nil
}

// effectivePhases applies the optional [StartPhase, EndPhase] window.
func (c *ExecutionConfig) effectivePhases() []catalog.Phase {
	start, end := 0, len(c.Phases)
	if c.StartPhase > 0 {
		start = c.StartPhase - 1
	}
	if c.EndPhase > 0 {
		end = c.EndPhase
	}
	return c.Phases[start:end]
}
