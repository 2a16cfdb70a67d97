package dag

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

// Common errors for graph construction.
var (
	// ErrCycleDetected is returned when an agent transitively depends on itself.
	ErrCycleDetected = errors.New("dag: dependency cycle detected")

	// ErrUnknownDependency is returned when a depends_on entry names an agent
	// that is not present in the catalog.
	ErrUnknownDependency = errors.New("dag: dependency references unknown agent")

	// ErrDuplicateAgent is returned when two mappings share an agent key.
	ErrDuplicateAgent = errors.New("dag: duplicate agent key")
)

// Node is a single agent's entry in the pipeline DAG.
type Node struct {
	DependsOn []string      `json:"depends_on,omitempty"`
	Phase     catalog.Phase `json:"phase"`
}

// PipelineDAG is the validated dependency graph for one pipeline definition.
// Built once by Build; read-only thereafter.
type PipelineDAG struct {
	// Nodes maps agent key to its graph node.
	Nodes map[string]Node

	// Phases maps each phase to its agent keys, sorted by priority
	// ascending with agent key as tie-break.
	Phases map[catalog.Phase][]string

	// TopologicalOrder is a deterministic global order in which every
	// agent's dependencies appear strictly before the agent itself.
	TopologicalOrder []string

	// CheckpointPhases lists the phases at which the scheduler snapshots
	// memory before running any agent.
	CheckpointPhases []catalog.Phase
}

// AgentsForPhase returns the phase's agent keys sorted by priority ascending,
// ties broken by key. Returns nil for a phase with no agents.
func (d *PipelineDAG) AgentsForPhase(phase catalog.Phase) []string {
	return d.Phases[phase]
}

// Build constructs a PipelineDAG from the catalog, failing with
// ErrCycleDetected or ErrUnknownDependency when the catalog is not a valid
// DAG. checkpointPhases is carried through verbatim.
func Build(mappings []catalog.AgentMapping, checkpointPhases []catalog.Phase) (*PipelineDAG, error) {
	nodes := make(map[string]Node, len(mappings))
	priorities := make(map[string]int, len(mappings))
	phases := make(map[catalog.Phase][]string)

	for _, m := range mappings {
		if _, dup := nodes[m.Key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, m.Key)
		}
		nodes[m.Key] = Node{DependsOn: append([]string(nil), m.DependsOn...), Phase: m.Phase}
		priorities[m.Key] = m.Priority
		phases[m.Phase] = append(phases[m.Phase], m.Key)
	}

	for key, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %q (required by %q)", ErrUnknownDependency, dep, key)
			}
		}
	}

	for phase := range phases {
		keys := phases[phase]
		sort.Slice(keys, func(i, j int) bool {
			pi, pj := priorities[keys[i]], priorities[keys[j]]
			if pi != pj {
				return pi < pj
			}
			return keys[i] < keys[j]
		})
	}

	order, err := topologicalOrder(nodes, priorities)
	if err != nil {
		return nil, err
	}

	return &PipelineDAG{
		Nodes:            nodes,
		Phases:           phases,
		TopologicalOrder: order,
		CheckpointPhases: append([]catalog.Phase(nil), checkpointPhases...),
	}, nil
}

// topologicalOrder runs a stable variant of Kahn's algorithm: among ready
// nodes (all dependencies placed), the one with the lowest priority wins,
// ties broken lexicographically by key. Determinism keeps checkpoints and
// tests reproducible across runs.
func topologicalOrder(nodes map[string]Node, priorities map[string]int) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))

	for key, n := range nodes {
		indegree[key] += 0
		for _, dep := range n.DependsOn {
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []string
	for key, deg := range indegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			pi, pb := priorities[ready[i]], priorities[ready[best]]
			if pi < pb || (pi == pb && ready[i] < ready[best]) {
				best = i
			}
		}
		next := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, next)

		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for key, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, key)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: involving %v", ErrCycleDetected, stuck)
	}
	return order, nil
}

// ValidateDependencies inspects the catalog without building a graph and
// returns human-readable problems: dangling dependency references and
// dependency cycles. An empty slice means the catalog is valid.
func ValidateDependencies(mappings []catalog.AgentMapping) []string {
	var problems []string

	idx := make(map[string]catalog.AgentMapping, len(mappings))
	for _, m := range mappings {
		if _, dup := idx[m.Key]; dup {
			problems = append(problems, fmt.Sprintf("duplicate agent key %q", m.Key))
			continue
		}
		idx[m.Key] = m
	}

	for _, m := range mappings {
		for _, dep := range m.DependsOn {
			if _, ok := idx[dep]; !ok {
				problems = append(problems, fmt.Sprintf("agent %q depends on unknown agent %q", m.Key, dep))
			}
		}
	}

	// Cycle check via three-color DFS, deterministic over sorted keys.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(idx))

	var visit func(key string) bool
	visit = func(key string) bool {
		color[key] = gray
		deps := append([]string(nil), idx[key].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := idx[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				problems = append(problems, fmt.Sprintf("dependency cycle through %q and %q", key, dep))
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[key] = black
		return false
	}

	keys := make([]string, 0, len(idx))
	for key := range idx {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if color[key] == white {
			if visit(key) {
				break
			}
		}
	}

	return problems
}
