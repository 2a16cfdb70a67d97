package scheduler

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

// AgentExecutor performs the actual work behind an agent invocation,
// typically by constructing a prompt from the memory context and calling a
// model. Expected task failures must be reported through the error return,
// not a panic. Implementations should honor the context deadline.
type AgentExecutor interface {
	Execute(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error)
}

// ExecutorFunc adapts a function to AgentExecutor.
type ExecutorFunc func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error)

// Execute implements AgentExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
	return f(ctx, mapping, phase, memoryContext)
}

// StaticExecutor produces canned per-agent outputs without doing any real
// work. Used by the dry-run mode and by tests.
type StaticExecutor struct {
	// Outputs maps agent key to a fixed output. Agents without an entry
	// get a generated placeholder.
	Outputs map[string]any

	// Fail lists agent keys that should report a simulated failure.
	Fail map[string]bool
}

// NewStaticExecutor creates a StaticExecutor with empty override maps.
func NewStaticExecutor() *StaticExecutor {
	return &StaticExecutor{
		Outputs: make(map[string]any),
		Fail:    make(map[string]bool),
	}
}

// Execute implements AgentExecutor.
func (s *StaticExecutor) Execute(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Fail[mapping.Key] {
		return nil, fmt.Errorf("simulated failure for agent %s", mapping.Key)
	}
	if out, ok := s.Outputs[mapping.Key]; ok {
		return out, nil
	}
	return fmt.Sprintf("%s output from %s", phase, mapping.Key), nil
}
