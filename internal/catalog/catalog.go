package catalog

import (
	"errors"
	"fmt"
)

// Common errors for catalog lookups.
var (
	ErrAgentNotFound    = errors.New("agent not found in catalog")
	ErrReviewerNotFound = errors.New("no reviewer for phase")
)

// AgentMapping is the immutable, catalog-defined record for a single agent.
//
// Priority orders agents within a phase (ascending = earlier). DependsOn
// names other agent keys that must complete before this agent runs; the
// dependency graph enforces the ordering globally. Reward is the XP credit
// earned when the agent completes successfully.
type AgentMapping struct {
	// Key is the unique agent identifier (e.g. "task-analyzer").
	Key string `json:"key"`

	// Phase is the pipeline phase this agent belongs to.
	Phase Phase `json:"phase"`

	// Priority orders agents within a phase, ascending.
	Priority int `json:"priority"`

	// DependsOn lists agent keys that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`

	// Reward is the XP earned on successful completion.
	Reward int `json:"reward"`

	// MemoryReads are the memory keys read to build the agent's context.
	MemoryReads []string `json:"memory_reads,omitempty"`

	// MemoryWrites are the memory keys the agent's output is written to.
	MemoryWrites []string `json:"memory_writes,omitempty"`

	// Critical marks agents whose failure halts the entire pipeline.
	Critical bool `json:"critical"`

	// Reviewer marks the per-phase forensic reviewer. Reviewers are always
	// critical and are executed by the verification gate, not the executor.
	Reviewer bool `json:"reviewer,omitempty"`
}

// reviewerPriority sorts reviewers after every work agent in their phase.
const reviewerPriority = 100

// Default returns the full static catalog: 40 work agents plus one forensic
// reviewer per phase. The slice is rebuilt on each call so callers may
// mutate their copy freely.
func Default() []AgentMapping {
	agents := []AgentMapping{
		// analysis
		{Key: "task-analyzer", Phase: PhaseAnalysis, Priority: 1, Reward: 100, Critical: true,
			MemoryWrites: []string{"analysis/task-profile"}},
		{Key: "requirement-extractor", Phase: PhaseAnalysis, Priority: 2, Reward: 60,
			DependsOn:   []string{"task-analyzer"},
			MemoryReads: []string{"analysis/task-profile"}, MemoryWrites: []string{"analysis/requirements"}},
		{Key: "scope-mapper", Phase: PhaseAnalysis, Priority: 3, Reward: 50,
			DependsOn:   []string{"task-analyzer"},
			MemoryReads: []string{"analysis/task-profile"}, MemoryWrites: []string{"analysis/scope"}},
		{Key: "assumption-hunter", Phase: PhaseAnalysis, Priority: 4, Reward: 50,
			DependsOn:   []string{"requirement-extractor"},
			MemoryReads: []string{"analysis/requirements"}, MemoryWrites: []string{"analysis/assumptions"}},
		{Key: "constraint-profiler", Phase: PhaseAnalysis, Priority: 5, Reward: 50,
			DependsOn:   []string{"requirement-extractor"},
			MemoryReads: []string{"analysis/requirements"}, MemoryWrites: []string{"analysis/constraints"}},
		{Key: "risk-assessor", Phase: PhaseAnalysis, Priority: 6, Reward: 60,
			DependsOn:   []string{"scope-mapper", "constraint-profiler"},
			MemoryReads: []string{"analysis/scope", "analysis/constraints"}, MemoryWrites: []string{"analysis/risks"}},

		// exploration
		{Key: "codebase-scout", Phase: PhaseExploration, Priority: 1, Reward: 60,
			MemoryReads: []string{"analysis/task-profile", "analysis/scope"}, MemoryWrites: []string{"exploration/survey"}},
		{Key: "pattern-miner", Phase: PhaseExploration, Priority: 2, Reward: 50,
			DependsOn:   []string{"codebase-scout"},
			MemoryReads: []string{"exploration/survey"}, MemoryWrites: []string{"exploration/patterns"}},
		{Key: "dependency-auditor", Phase: PhaseExploration, Priority: 3, Reward: 50,
			DependsOn:   []string{"codebase-scout"},
			MemoryReads: []string{"exploration/survey"}, MemoryWrites: []string{"exploration/dependencies"}},
		{Key: "solution-sketcher", Phase: PhaseExploration, Priority: 4, Reward: 70,
			DependsOn:   []string{"pattern-miner"},
			MemoryReads: []string{"exploration/patterns", "analysis/constraints"}, MemoryWrites: []string{"exploration/candidates"}},
		{Key: "tradeoff-analyst", Phase: PhaseExploration, Priority: 5, Reward: 50,
			DependsOn:   []string{"solution-sketcher"},
			MemoryReads: []string{"exploration/candidates"}, MemoryWrites: []string{"exploration/tradeoffs"}},
		{Key: "spike-prototyper", Phase: PhaseExploration, Priority: 6, Reward: 60,
			DependsOn:   []string{"solution-sketcher"},
			MemoryReads: []string{"exploration/candidates"}, MemoryWrites: []string{"exploration/spikes"}},

		// design
		{Key: "interface-designer", Phase: PhaseDesign, Priority: 1, Reward: 100, Critical: true,
			MemoryReads: []string{"exploration/candidates", "analysis/requirements"}, MemoryWrites: []string{"design/interfaces"}},
		{Key: "schema-modeler", Phase: PhaseDesign, Priority: 2, Reward: 60,
			DependsOn:   []string{"interface-designer"},
			MemoryReads: []string{"design/interfaces"}, MemoryWrites: []string{"design/schema"}},
		{Key: "type-architect", Phase: PhaseDesign, Priority: 3, Reward: 60,
			DependsOn:   []string{"interface-designer"},
			MemoryReads: []string{"design/interfaces"}, MemoryWrites: []string{"design/type-hierarchy"}},
		{Key: "flow-designer", Phase: PhaseDesign, Priority: 4, Reward: 60,
			DependsOn:   []string{"schema-modeler"},
			MemoryReads: []string{"design/schema"}, MemoryWrites: []string{"design/control-flow"}},
		{Key: "error-strategy-planner", Phase: PhaseDesign, Priority: 5, Reward: 50,
			DependsOn:   []string{"flow-designer"},
			MemoryReads: []string{"design/control-flow"}, MemoryWrites: []string{"design/error-strategy"}},
		{Key: "design-documenter", Phase: PhaseDesign, Priority: 6, Reward: 50,
			DependsOn:   []string{"type-architect", "error-strategy-planner"},
			MemoryReads: []string{"design/type-hierarchy", "design/error-strategy"}, MemoryWrites: []string{"design/design-doc"}},

		// implementation
		{Key: "core-implementer", Phase: PhaseImplementation, Priority: 1, Reward: 90,
			MemoryReads: []string{"design/interfaces", "design/design-doc"}, MemoryWrites: []string{"implementation/core"}},
		{Key: "integration-weaver", Phase: PhaseImplementation, Priority: 2, Reward: 70,
			DependsOn:   []string{"core-implementer"},
			MemoryReads: []string{"implementation/core"}, MemoryWrites: []string{"implementation/integration"}},
		{Key: "data-layer-builder", Phase: PhaseImplementation, Priority: 3, Reward: 70,
			DependsOn:   []string{"core-implementer"},
			MemoryReads: []string{"implementation/core", "design/schema"}, MemoryWrites: []string{"implementation/data-layer"}},
		{Key: "error-path-hardener", Phase: PhaseImplementation, Priority: 4, Reward: 60,
			DependsOn:   []string{"integration-weaver"},
			MemoryReads: []string{"implementation/integration", "design/error-strategy"}, MemoryWrites: []string{"implementation/error-paths"}},
		{Key: "comment-curator", Phase: PhaseImplementation, Priority: 5, Reward: 40,
			DependsOn:   []string{"core-implementer"},
			MemoryReads: []string{"implementation/core"}, MemoryWrites: []string{"implementation/comments"}},
		{Key: "refactor-surgeon", Phase: PhaseImplementation, Priority: 6, Reward: 60,
			DependsOn:   []string{"integration-weaver"},
			MemoryReads: []string{"implementation/integration"}, MemoryWrites: []string{"implementation/refactors"}},
		{Key: "build-mechanic", Phase: PhaseImplementation, Priority: 7, Reward: 50,
			DependsOn:   []string{"data-layer-builder"},
			MemoryReads: []string{"implementation/data-layer"}, MemoryWrites: []string{"implementation/build"}},

		// testing
		{Key: "unit-test-author", Phase: PhaseTesting, Priority: 1, Reward: 70,
			MemoryReads: []string{"implementation/core"}, MemoryWrites: []string{"testing/unit-tests"}},
		{Key: "edge-case-prober", Phase: PhaseTesting, Priority: 2, Reward: 60,
			DependsOn:   []string{"unit-test-author"},
			MemoryReads: []string{"testing/unit-tests"}, MemoryWrites: []string{"testing/edge-cases"}},
		{Key: "integration-tester", Phase: PhaseTesting, Priority: 3, Reward: 60,
			DependsOn:   []string{"unit-test-author"},
			MemoryReads: []string{"implementation/integration"}, MemoryWrites: []string{"testing/integration-tests"}},
		{Key: "regression-sentinel", Phase: PhaseTesting, Priority: 4, Reward: 50,
			DependsOn:   []string{"integration-tester"},
			MemoryReads: []string{"testing/integration-tests"}, MemoryWrites: []string{"testing/regressions"}},
		{Key: "coverage-auditor", Phase: PhaseTesting, Priority: 5, Reward: 50,
			DependsOn:   []string{"unit-test-author", "edge-case-prober"},
			MemoryReads: []string{"testing/unit-tests", "testing/edge-cases"}, MemoryWrites: []string{"testing/coverage"}},
		{Key: "flake-hunter", Phase: PhaseTesting, Priority: 6, Reward: 40,
			DependsOn:   []string{"integration-tester"},
			MemoryReads: []string{"testing/integration-tests"}, MemoryWrites: []string{"testing/flakes"}},

		// review
		{Key: "performance-profiler", Phase: PhaseReview, Priority: 1, Reward: 60,
			MemoryReads: []string{"implementation/core"}, MemoryWrites: []string{"review/performance"}},
		{Key: "security-scanner", Phase: PhaseReview, Priority: 2, Reward: 70,
			MemoryReads: []string{"implementation/core", "implementation/data-layer"}, MemoryWrites: []string{"review/security"}},
		{Key: "complexity-auditor", Phase: PhaseReview, Priority: 3, Reward: 50,
			MemoryReads: []string{"implementation/core"}, MemoryWrites: []string{"review/complexity"}},
		{Key: "style-reviewer", Phase: PhaseReview, Priority: 4, Reward: 40,
			DependsOn:   []string{"complexity-auditor"},
			MemoryReads: []string{"review/complexity"}, MemoryWrites: []string{"review/style"}},
		{Key: "docs-reviewer", Phase: PhaseReview, Priority: 5, Reward: 50,
			MemoryReads: []string{"design/design-doc", "implementation/comments"}, MemoryWrites: []string{"review/docs"}},

		// release
		{Key: "changelog-scribe", Phase: PhaseRelease, Priority: 1, Reward: 40,
			MemoryReads: []string{"review/docs"}, MemoryWrites: []string{"release/changelog"}},
		{Key: "artifact-packager", Phase: PhaseRelease, Priority: 2, Reward: 60,
			MemoryReads: []string{"implementation/build"}, MemoryWrites: []string{"release/artifacts"}},
		{Key: "release-verifier", Phase: PhaseRelease, Priority: 3, Reward: 60,
			DependsOn:   []string{"artifact-packager"},
			MemoryReads: []string{"release/artifacts"}, MemoryWrites: []string{"release/verification"}},
		{Key: "signoff-approver", Phase: PhaseRelease, Priority: 4, Reward: 150, Critical: true,
			DependsOn:   []string{"release-verifier", "changelog-scribe"},
			MemoryReads: []string{"release/verification", "release/changelog"}, MemoryWrites: []string{"release/signoff"}},
	}

	for _, phase := range AllPhases() {
		agents = append(agents, reviewerMapping(phase))
	}
	return agents
}

// reviewerMapping builds the forensic reviewer entry for a phase. Reviewers
// read every output key written in their phase and record their case file
// under "<phase>/casefile".
func reviewerMapping(phase Phase) AgentMapping {
	return AgentMapping{
		Key:          ReviewerKey(phase),
		Phase:        phase,
		Priority:     reviewerPriority,
		Reward:       75,
		Critical:     true,
		Reviewer:     true,
		MemoryWrites: []string{string(phase) + "/casefile"},
	}
}

// ReviewerKey returns the forensic reviewer's agent key for a phase.
func ReviewerKey(phase Phase) string {
	return "sherlock-" + string(phase)
}

// Index builds a key -> mapping lookup table.
func Index(mappings []AgentMapping) map[string]AgentMapping {
	idx := make(map[string]AgentMapping, len(mappings))
	for _, m := range mappings {
		idx[m.Key] = m
	}
	return idx
}

// ByKey finds a mapping by agent key.
func ByKey(mappings []AgentMapping, key string) (AgentMapping, error) {
	for _, m := range mappings {
		if m.Key == key {
			return m, nil
		}
	}
	return AgentMapping{}, fmt.Errorf("%w: %q", ErrAgentNotFound, key)
}

// ReviewerFor finds the forensic reviewer mapping for a phase.
func ReviewerFor(mappings []AgentMapping, phase Phase) (AgentMapping, error) {
	for _, m := range mappings {
		if m.Reviewer && m.Phase == phase {
			return m, nil
		}
	}
	return AgentMapping{}, fmt.Errorf("%w: %s", ErrReviewerNotFound, phase)
}

// WorkAgents returns the non-reviewer subset of the catalog, preserving order.
func WorkAgents(mappings []AgentMapping) []AgentMapping {
	out := make([]AgentMapping, 0, len(mappings))
	for _, m := range mappings {
		if !m.Reviewer {
			out = append(out, m)
		}
	}
	return out
}

// TotalReward sums the declared reward across all mappings.
func TotalReward(mappings []AgentMapping) int {
	total := 0
	for _, m := range mappings {
		total += m.Reward
	}
	return total
}
