package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/dag"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
	"github.com/fyrsmithlabs/orchestd/internal/learning"
	"github.com/fyrsmithlabs/orchestd/internal/memstore"
)

func newTestScheduler(t *testing.T, executor AgentExecutor) (*Scheduler, *memstore.InMemory) {
	t.Helper()

	memory, err := memstore.NewInMemory("coding", nil)
	require.NoError(t, err)

	gate, err := forensics.NewGate(nil, nil)
	require.NoError(t, err)

	sched, err := New(memory, executor, gate, nil, nil)
	require.NoError(t, err)
	return sched, memory
}

func defaultConfig(t *testing.T) *ExecutionConfig {
	t.Helper()
	cfg, err := DefaultExecutionConfig()
	require.NoError(t, err)
	return cfg
}

func TestExecuteHealthyRun(t *testing.T) {
	sched, memory := newTestScheduler(t, NewStaticExecutor())
	cfg := defaultConfig(t)

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, catalog.AllPhases(), result.CompletedPhases)
	assert.Equal(t, catalog.TotalReward(catalog.Default()), result.TotalReward)
	assert.Empty(t, result.FailedPhase)
	assert.Empty(t, result.FailedAgent)
	assert.False(t, result.RollbackApplied)
	require.Len(t, result.PhaseResults, 7)

	for _, pr := range result.PhaseResults {
		assert.True(t, pr.Success, "phase %s", pr.Phase)
		require.NotNil(t, pr.CaseFile, "phase %s", pr.Phase)
		assert.Equal(t, forensics.VerdictInnocent, pr.CaseFile.Verdict, "phase %s", pr.Phase)
	}

	total, ok, err := memory.Retrieve(context.Background(), "xp/total")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.TotalReward, total)

	perPhase, ok, err := memory.Retrieve(context.Background(), "xp/phase-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.PhaseResults[0].Reward, perPhase)

	state, ok, err := memory.Retrieve(context.Background(), "pipeline/state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, state.(pipelineStateRecord).Status)
}

func TestExecuteHealthyRunCheckpoints(t *testing.T) {
	sched, memory := newTestScheduler(t, NewStaticExecutor())
	cfg := defaultConfig(t)

	_, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)

	for _, phase := range DefaultCheckpointPhases() {
		cp, err := memory.GetCheckpoint(context.Background(), phase)
		require.NoError(t, err)
		require.NotNil(t, cp, "phase %s", phase)
		assert.Equal(t, phase, cp.Phase)
	}

	// The design checkpoint predates any design-phase write.
	cp, err := memory.GetCheckpoint(context.Background(), catalog.PhaseDesign)
	require.NoError(t, err)
	assert.NotContains(t, cp.Snapshot, "coding/design/interfaces")
	assert.Contains(t, cp.Snapshot, "coding/analysis/task-profile")
}

func TestExecuteNonCriticalFailureTolerated(t *testing.T) {
	executor := NewStaticExecutor()
	executor.Fail["risk-assessor"] = true

	sched, _ := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, catalog.AllPhases(), result.CompletedPhases)

	riskAssessor, err := catalog.ByKey(catalog.Default(), "risk-assessor")
	require.NoError(t, err)
	assert.Equal(t, catalog.TotalReward(catalog.Default())-riskAssessor.Reward, result.TotalReward)

	var found bool
	for _, ar := range result.PhaseResults[0].AgentResults {
		if ar.AgentKey == "risk-assessor" {
			found = true
			assert.False(t, ar.Success)
			assert.Zero(t, ar.RewardEarned)
			assert.Contains(t, ar.Error, "simulated failure")
		}
	}
	assert.True(t, found, "failed agent must still appear in results")
}

func TestExecuteCriticalFailureHalts(t *testing.T) {
	executor := NewStaticExecutor()
	executor.Fail["task-analyzer"] = true

	sched, _ := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, catalog.PhaseAnalysis, result.FailedPhase)
	assert.Equal(t, "task-analyzer", result.FailedAgent)
	assert.Empty(t, result.CompletedPhases)
	assert.False(t, result.RollbackApplied, "no checkpoint existed yet")

	// Only the failed phase appears, halted after its first agent.
	require.Len(t, result.PhaseResults, 1)
	require.Len(t, result.PhaseResults[0].AgentResults, 1)
	assert.Nil(t, result.PhaseResults[0].CaseFile, "no review for a halted phase")
}

func TestExecuteCriticalFailureAfterCheckpoint(t *testing.T) {
	executor := NewStaticExecutor()
	executor.Fail["signoff-approver"] = true

	sched, memory := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, catalog.PhaseRelease, result.FailedPhase)
	assert.Equal(t, "signoff-approver", result.FailedAgent)
	assert.True(t, result.RollbackApplied)
	assert.Equal(t, catalog.AllPhases()[:6], result.CompletedPhases)

	cp, err := memory.GetCheckpoint(context.Background(), catalog.PhaseRelease)
	require.NoError(t, err)
	require.NotNil(t, cp, "release checkpoint taken before the failure")
}

func TestExecuteGuiltyVerdictHalts(t *testing.T) {
	// A suspect analysis/assumptions write fails the assumption-scan check,
	// driving the phase reviewer to GUILTY.
	executor := NewStaticExecutor()
	executor.Fail["assumption-hunter"] = true

	sched, _ := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, catalog.PhaseAnalysis, result.FailedPhase)
	assert.Equal(t, catalog.ReviewerKey(catalog.PhaseAnalysis), result.FailedAgent)
	assert.Empty(t, result.CompletedPhases)

	pr := result.PhaseResults[0]
	require.NotNil(t, pr.CaseFile)
	assert.Equal(t, forensics.VerdictGuilty, pr.CaseFile.Verdict)
	assert.NotEmpty(t, pr.CaseFile.Remediations)

	reviewer := pr.AgentResults[len(pr.AgentResults)-1]
	assert.Equal(t, catalog.ReviewerKey(catalog.PhaseAnalysis), reviewer.AgentKey)
	assert.False(t, reviewer.Success)
	assert.Zero(t, reviewer.RewardEarned, "no reward for a GUILTY review")
}

func TestExecutePartialRange(t *testing.T) {
	sched, _ := newTestScheduler(t, NewStaticExecutor())
	cfg := defaultConfig(t)
	cfg.StartPhase = 4
	cfg.EndPhase = 7

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, result.Success)
	want := []catalog.Phase{
		catalog.PhaseImplementation,
		catalog.PhaseTesting,
		catalog.PhaseReview,
		catalog.PhaseRelease,
	}
	assert.Equal(t, want, result.CompletedPhases)
	require.Len(t, result.PhaseResults, 4)

	var wantReward int
	for _, m := range catalog.Default() {
		if m.Phase.Index() >= 4 {
			wantReward += m.Reward
		}
	}
	assert.Equal(t, wantReward, result.TotalReward)
}

func TestExecuteRerunIsIdempotent(t *testing.T) {
	sched, memory := newTestScheduler(t, NewStaticExecutor())
	cfg := defaultConfig(t)

	first, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, first.Success)

	keysBefore := memory.Keys()

	// Checkpoints from the first run survive; writes overwrite in place.
	second, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, first.TotalReward, second.TotalReward)
	assert.Equal(t, keysBefore, memory.Keys())
}

func TestExecuteReadAfterWriteOrdering(t *testing.T) {
	// requirement-extractor declares a read of analysis/task-profile, which
	// task-analyzer writes earlier in the same phase.
	var observed any
	executor := ExecutorFunc(func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
		if mapping.Key == "requirement-extractor" {
			observed = memoryContext["analysis/task-profile"]
		}
		return "output from " + mapping.Key, nil
	})

	sched, _ := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "output from task-analyzer", observed)
}

func TestExecuteMemoryContextOmitsMissingKeys(t *testing.T) {
	contexts := make(map[string]map[string]any)
	var mu sync.Mutex
	executor := ExecutorFunc(func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
		mu.Lock()
		contexts[mapping.Key] = memoryContext
		mu.Unlock()
		return "ok", nil
	})

	sched, _ := newTestScheduler(t, executor)
	cfg := defaultConfig(t)
	cfg.StartPhase = 3 // design reads exploration keys that were never written
	cfg.EndPhase = 3

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.Success)

	designer := contexts["interface-designer"]
	require.NotNil(t, designer)
	assert.NotContains(t, designer, "exploration/candidates")
	assert.NotContains(t, designer, "analysis/requirements")
}

func TestExecuteNeverRunsAgentsConcurrently(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	executor := ExecutorFunc(func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			max := maxInFlight.Load()
			if current <= max || maxInFlight.CompareAndSwap(max, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return "ok", nil
	})

	sched, _ := newTestScheduler(t, executor)
	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(1), maxInFlight.Load())
}

func TestExecuteAgentTimeout(t *testing.T) {
	executor := ExecutorFunc(func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "ok", nil
		}
	})

	sched, _ := newTestScheduler(t, executor)
	cfg := defaultConfig(t)
	cfg.AgentTimeout = 5 * time.Millisecond

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)

	// task-analyzer is critical, so the first timeout halts the run.
	assert.False(t, result.Success)
	assert.Equal(t, "task-analyzer", result.FailedAgent)
	assert.Contains(t, result.PhaseResults[0].AgentResults[0].Error, "context deadline exceeded")
}

func TestExecutePipelineTimeout(t *testing.T) {
	executor := ExecutorFunc(func(ctx context.Context, mapping catalog.AgentMapping, phase catalog.Phase, memoryContext map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return "ok", nil
		}
	})

	sched, _ := newTestScheduler(t, executor)
	cfg := defaultConfig(t)
	cfg.PipelineTimeout = 30 * time.Millisecond

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FailedPhase)
	assert.NotEqual(t, catalog.AllPhases(), result.CompletedPhases)
}

func TestExecuteEmptyPhaseListIsNoOp(t *testing.T) {
	graph, err := dag.Build(nil, nil)
	require.NoError(t, err)

	sched, _ := newTestScheduler(t, NewStaticExecutor())
	cfg := &ExecutionConfig{
		DAG:             graph,
		MemoryNamespace: "coding",
	}

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.TotalReward)
	assert.Empty(t, result.PhaseResults)
	assert.Empty(t, result.CompletedPhases)
}

func TestExecuteConfigValidation(t *testing.T) {
	sched, _ := newTestScheduler(t, NewStaticExecutor())

	tests := []struct {
		name   string
		mutate func(cfg *ExecutionConfig)
	}{
		{"nil dag", func(cfg *ExecutionConfig) { cfg.DAG = nil }},
		{"empty namespace", func(cfg *ExecutionConfig) { cfg.MemoryNamespace = "" }},
		{"start beyond phases", func(cfg *ExecutionConfig) { cfg.StartPhase = 8 }},
		{"end beyond phases", func(cfg *ExecutionConfig) { cfg.EndPhase = 8 }},
		{"inverted bounds", func(cfg *ExecutionConfig) { cfg.StartPhase = 5; cfg.EndPhase = 2 }},
		{"unknown agent", func(cfg *ExecutionConfig) {
			cfg.AgentsByPhase[catalog.PhaseAnalysis] = append(
				cfg.AgentsByPhase[catalog.PhaseAnalysis],
				catalog.AgentMapping{Key: "ghost-agent", Phase: catalog.PhaseAnalysis},
			)
		}},
		{"duplicate phase", func(cfg *ExecutionConfig) {
			cfg.Phases = append(cfg.Phases, catalog.PhaseAnalysis)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)

			result, err := sched.Execute(context.Background(), cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, result, "config errors precede all side effects")
		})
	}
}

func TestExecuteFeedsLearningBridge(t *testing.T) {
	var submissions atomic.Int64
	learner := learnerFunc(func(ctx context.Context, trajectoryID string, quality float64, opts learning.FeedbackOptions) (*learning.WeightUpdateResult, error) {
		submissions.Add(1)
		return &learning.WeightUpdateResult{TrajectoryID: trajectoryID, Quality: quality, Accepted: true}, nil
	})
	bridge := learning.NewBridge(nil, learner, nil, nil, nil)

	memory, err := memstore.NewInMemory("coding", nil)
	require.NoError(t, err)
	gate, err := forensics.NewGate(nil, nil)
	require.NoError(t, err)
	sched, err := New(memory, NewStaticExecutor(), gate, bridge, nil)
	require.NoError(t, err)

	result, err := sched.Execute(context.Background(), defaultConfig(t))
	require.NoError(t, err)
	require.True(t, result.Success)

	bridge.Close()
	assert.Equal(t, int64(7), submissions.Load(), "one verdict per phase")
}

func TestExecuteRestoreCheckpointEnablesRetry(t *testing.T) {
	executor := NewStaticExecutor()
	executor.Fail["signoff-approver"] = true

	sched, memory := newTestScheduler(t, executor)
	cfg := defaultConfig(t)

	result, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.True(t, result.RollbackApplied)

	// Caller-driven retry: restore the failed phase's checkpoint, fix the
	// agent, and re-run just that phase.
	require.NoError(t, memory.RestoreCheckpoint(context.Background(), catalog.PhaseRelease))
	executor.Fail["signoff-approver"] = false

	cfg.StartPhase = 7
	cfg.EndPhase = 7
	retry, err := sched.Execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, retry.Success)
	assert.Equal(t, []catalog.Phase{catalog.PhaseRelease}, retry.CompletedPhases)
}

type learnerFunc func(ctx context.Context, trajectoryID string, quality float64, opts learning.FeedbackOptions) (*learning.WeightUpdateResult, error)

func (f learnerFunc) ProvideFeedback(ctx context.Context, trajectoryID string, quality float64, opts learning.FeedbackOptions) (*learning.WeightUpdateResult, error) {
	return f(ctx, trajectoryID, quality, opts)
}

func TestNewRequiresMemoryAndExecutor(t *testing.T) {
	memory, err := memstore.NewInMemory("coding", nil)
	require.NoError(t, err)

	_, err = New(nil, NewStaticExecutor(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(memory, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
