package scheduler

import (
	"time"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
)

// PipelineState values persisted under the pipeline/state memory key.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// AgentExecutionResult records the outcome of one agent invocation.
type AgentExecutionResult struct {
	// AgentKey identifies the agent.
	AgentKey string `json:"agent_key"`

	// Success is true when the executor returned without error.
	Success bool `json:"success"`

	// Output is the executor's raw output, written to the agent's declared
	// memory keys on success.
	Output any `json:"output,omitempty"`

	// RewardEarned is the XP credited for this invocation.
	RewardEarned int `json:"reward_earned"`

	// MemoryWrites lists the keys the output was written to.
	MemoryWrites []string `json:"memory_writes,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// PhaseExecutionResult aggregates one phase's agent results.
type PhaseExecutionResult struct {
	// Phase is the executed phase.
	Phase catalog.Phase `json:"phase"`

	// Success is true when no critical agent failed and the reviewer did
	// not return GUILTY.
	Success bool `json:"success"`

	// AgentResults lists per-agent outcomes in execution order, the
	// reviewer's result last.
	AgentResults []AgentExecutionResult `json:"agent_results"`

	// Reward is the XP earned across the phase, reviewer included.
	Reward int `json:"reward"`

	// CaseFile is the forensic reviewer's finding, nil when the phase
	// halted before review.
	CaseFile *forensics.CaseFile `json:"case_file,omitempty"`

	// Duration is the wall-clock phase time.
	Duration time.Duration `json:"duration"`
}

// PipelineExecutionResult is the assembled outcome of one run. It is always
// returned fully populated, even on failure, so partial progress remains
// inspectable.
type PipelineExecutionResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Success is true when every effective phase completed.
	Success bool `json:"success"`

	// PhaseResults lists per-phase outcomes in execution order, including
	// the failed phase when the run halted.
	PhaseResults []PhaseExecutionResult `json:"phase_results"`

	// TotalReward is the XP accumulated across all completed work.
	TotalReward int `json:"total_reward"`

	// CompletedPhases lists the phases that fully succeeded, in order.
	CompletedPhases []catalog.Phase `json:"completed_phases"`

	// FailedPhase is the phase a critical failure occurred in, empty on
	// success.
	FailedPhase catalog.Phase `json:"failed_phase,omitempty"`

	// FailedAgent is the agent whose failure halted the run, empty on
	// success.
	FailedAgent string `json:"failed_agent,omitempty"`

	// RollbackApplied is true when at least one checkpoint existed at the
	// time of the halting failure, meaning a known-good restore point is
	// available.
	RollbackApplied bool `json:"rollback_applied"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}

// pipelineStateRecord is the value stored under pipeline/state.
type pipelineStateRecord struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Phases    []string  `json:"phases"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
