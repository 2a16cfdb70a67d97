package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
	"github.com/fyrsmithlabs/orchestd/internal/learning"
	"github.com/fyrsmithlabs/orchestd/internal/memstore"
)

const instrumentationName = "github.com/fyrsmithlabs/orchestd/internal/scheduler"

// Memory keys the scheduler persists under the configured namespace.
const (
	keyPipelineState = "pipeline/state"
	keyTotalXP       = "xp/total"
)

// Scheduler is the pipeline driver. One Scheduler may serve multiple runs,
// but each run executes its agents strictly one at a time.
type Scheduler struct {
	memory   memstore.Coordinator
	executor AgentExecutor
	gate     *forensics.Gate
	bridge   *learning.Bridge
	logger   *zap.Logger

	tracer       trace.Tracer
	meter        metric.Meter
	agentCounter metric.Int64Counter
	phaseCounter metric.Int64Counter
}

// New creates a scheduler. memory and executor are required; gate and bridge
// may be nil to disable forensic review and learning feedback respectively.
func New(memory memstore.Coordinator, executor AgentExecutor, gate *forensics.Gate, bridge *learning.Bridge, logger *zap.Logger) (*Scheduler, error) {
	if memory == nil {
		return nil, fmt.Errorf("%w: missing memory coordinator", ErrInvalidConfig)
	}
	if executor == nil {
		return nil, fmt.Errorf("%w: missing agent executor", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		memory:   memory,
		executor: executor,
		gate:     gate,
		bridge:   bridge,
		logger:   logger.Named("scheduler"),
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Scheduler) initMetrics() {
	var err error
	s.agentCounter, err = s.meter.Int64Counter(
		"orchestd.scheduler.agents_total",
		metric.WithDescription("Total agent invocations, by outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		s.logger.Warn("failed to create agent counter", zap.Error(err))
	}
	s.phaseCounter, err = s.meter.Int64Counter(
		"orchestd.scheduler.phases_total",
		metric.WithDescription("Total phase executions, by outcome"),
		metric.WithUnit("{phase}"),
	)
	if err != nil {
		s.logger.Warn("failed to create phase counter", zap.Error(err))
	}
}

// runState carries mutable bookkeeping across one run.
type runState struct {
	result          *PipelineExecutionResult
	completedAgents []string
	checkpointSeen  bool
}

// Execute drives one pipeline run against the config. Configuration errors
// return (nil, error) before any side effect. Execution-time failures halt
// the run but still return a fully populated result with a nil error, so
// partial progress is always inspectable.
func (s *Scheduler) Execute(ctx context.Context, cfg *ExecutionConfig) (*PipelineExecutionResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PipelineTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "scheduler.Execute",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	phases := cfg.effectivePhases()
	start := time.Now()

	run := &runState{
		result: &PipelineExecutionResult{
			RunID:   runID,
			Success: true,
		},
	}

	s.logger.Info("pipeline run starting",
		zap.String("run_id", runID),
		zap.Int("phases", len(phases)),
		zap.String("namespace", cfg.MemoryNamespace),
	)

	if err := s.storeState(ctx, runID, StateRunning, phases, start); err != nil {
		s.logger.Warn("failed to record pipeline state", zap.Error(err))
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			s.haltRun(run, phase, "", fmt.Sprintf("pipeline deadline exceeded: %v", err))
			break
		}

		phaseResult := s.executePhase(ctx, cfg, phase, run)
		run.result.PhaseResults = append(run.result.PhaseResults, phaseResult)
		run.result.TotalReward += phaseResult.Reward

		if s.phaseCounter != nil {
			s.phaseCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("phase", string(phase)),
				attribute.Bool("success", phaseResult.Success),
			))
		}

		if !phaseResult.Success {
			run.result.Success = false
			break
		}

		run.result.CompletedPhases = append(run.result.CompletedPhases, phase)
		xpKey := fmt.Sprintf("xp/phase-%d", phase.Index())
		if err := s.memory.Store(ctx, xpKey, phaseResult.Reward); err != nil {
			s.logger.Warn("failed to persist phase reward", zap.String("key", xpKey), zap.Error(err))
		}
	}

	run.result.Duration = time.Since(start)

	if err := s.memory.Store(ctx, keyTotalXP, run.result.TotalReward); err != nil {
		s.logger.Warn("failed to persist total reward", zap.Error(err))
	}
	finalState := StateCompleted
	if !run.result.Success {
		finalState = StateFailed
	}
	if err := s.storeState(ctx, runID, finalState, phases, start); err != nil {
		s.logger.Warn("failed to record pipeline state", zap.Error(err))
	}

	s.logger.Info("pipeline run finished",
		zap.String("run_id", runID),
		zap.Bool("success", run.result.Success),
		zap.Int("total_reward", run.result.TotalReward),
		zap.Int("completed_phases", len(run.result.CompletedPhases)),
		zap.Duration("duration", run.result.Duration),
	)
	return run.result, nil
}

// executePhase runs one phase end to end: optional checkpoint, work agents
// in dependency/priority order, then the forensic reviewer.
func (s *Scheduler) executePhase(ctx context.Context, cfg *ExecutionConfig, phase catalog.Phase, run *runState) PhaseExecutionResult {
	ctx, span := s.tracer.Start(ctx, "scheduler.executePhase",
		trace.WithAttributes(attribute.String("phase", string(phase))))
	defer span.End()

	phaseStart := time.Now()
	result := PhaseExecutionResult{Phase: phase, Success: true}

	if containsPhase(cfg.CheckpointPhases, phase) {
		s.checkpointPhase(ctx, phase, run)
	}

	index := phaseIndex(cfg.AgentsByPhase[phase])
	var evidence []forensics.EvidenceItem
	evidenceByKey := make(map[string]bool)

	for _, key := range cfg.DAG.AgentsForPhase(phase) {
		mapping, ok := index[key]
		if !ok || mapping.Reviewer {
			continue
		}

		if err := ctx.Err(); err != nil {
			s.haltRun(run, phase, mapping.Key, fmt.Sprintf("pipeline deadline exceeded: %v", err))
			result.Success = false
			result.Duration = time.Since(phaseStart)
			return result
		}

		agentResult := s.executeAgent(ctx, cfg, mapping, phase)
		result.AgentResults = append(result.AgentResults, agentResult)
		result.Reward += agentResult.RewardEarned

		if s.agentCounter != nil {
			s.agentCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("phase", string(phase)),
				attribute.Bool("success", agentResult.Success),
			))
		}

		if agentResult.Success {
			run.completedAgents = append(run.completedAgents, mapping.Key)
			for _, writeKey := range mapping.MemoryWrites {
				evidence = append(evidence, forensics.EvidenceItem{
					Source: writeKey,
					Status: forensics.EvidenceVerified,
					Notes:  fmt.Sprintf("written by %s", mapping.Key),
				})
				evidenceByKey[writeKey] = true
			}
			continue
		}

		if mapping.Critical {
			s.haltRun(run, phase, mapping.Key, agentResult.Error)
			result.Success = false
			result.Duration = time.Since(phaseStart)
			return result
		}

		s.logger.Warn("non-critical agent failed, continuing",
			zap.String("agent", mapping.Key),
			zap.String("phase", string(phase)),
			zap.String("error", agentResult.Error),
		)
		for _, writeKey := range mapping.MemoryWrites {
			evidence = append(evidence, forensics.EvidenceItem{
				Source: writeKey,
				Status: forensics.EvidenceSuspect,
				Notes:  fmt.Sprintf("agent %s failed: %s", mapping.Key, agentResult.Error),
			})
			evidenceByKey[writeKey] = true
		}
	}

	evidence = append(evidence, s.missingEvidence(ctx, cfg.AgentsByPhase[phase], evidenceByKey)...)

	if reviewResult, halted := s.reviewPhase(ctx, cfg, phase, evidence, run); reviewResult != nil {
		result.AgentResults = append(result.AgentResults, *reviewResult)
		result.Reward += reviewResult.RewardEarned
		result.CaseFile, _ = reviewResult.Output.(*forensics.CaseFile)
		if halted {
			result.Success = false
		}
	}

	result.Duration = time.Since(phaseStart)
	return result
}

// executeAgent invokes one work agent under the per-agent timeout and writes
// its output to the declared memory keys.
func (s *Scheduler) executeAgent(ctx context.Context, cfg *ExecutionConfig, mapping catalog.AgentMapping, phase catalog.Phase) AgentExecutionResult {
	memoryContext := make(map[string]any, len(mapping.MemoryReads))
	for _, readKey := range mapping.MemoryReads {
		value, ok, err := s.memory.Retrieve(ctx, readKey)
		if err != nil {
			s.logger.Warn("memory read failed", zap.String("key", readKey), zap.Error(err))
			continue
		}
		if ok {
			memoryContext[readKey] = value
		}
	}

	agentCtx := ctx
	if cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, cfg.AgentTimeout)
		defer cancel()
	}

	agentStart := time.Now()
	output, err := s.executor.Execute(agentCtx, mapping, phase, memoryContext)
	duration := time.Since(agentStart)

	if err != nil {
		return AgentExecutionResult{
			AgentKey: mapping.Key,
			Success:  false,
			Duration: duration,
			Error:    err.Error(),
		}
	}

	for _, writeKey := range mapping.MemoryWrites {
		if storeErr := s.memory.Store(ctx, writeKey, output); storeErr != nil {
			return AgentExecutionResult{
				AgentKey: mapping.Key,
				Success:  false,
				Output:   output,
				Duration: duration,
				Error:    fmt.Sprintf("memory write %s: %v", writeKey, storeErr),
			}
		}
	}

	return AgentExecutionResult{
		AgentKey:     mapping.Key,
		Success:      true,
		Output:       output,
		RewardEarned: mapping.Reward,
		MemoryWrites: append([]string(nil), mapping.MemoryWrites...),
		Duration:     duration,
	}
}

// checkpointPhase takes the phase-entry checkpoint. An already-existing
// checkpoint (from a prior partial run) is kept as-is.
func (s *Scheduler) checkpointPhase(ctx context.Context, phase catalog.Phase, run *runState) {
	run.checkpointSeen = true

	snapshot, err := s.memory.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("memory snapshot failed, skipping checkpoint",
			zap.String("phase", string(phase)), zap.Error(err))
		return
	}

	cp := &memstore.Checkpoint{
		ID:               uuid.NewString(),
		Phase:            phase,
		CumulativeReward: run.result.TotalReward,
		CompletedAgents:  append([]string(nil), run.completedAgents...),
		Snapshot:         snapshot,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.memory.CreateCheckpoint(ctx, cp); err != nil {
		if errors.Is(err, memstore.ErrCheckpointExists) {
			s.logger.Debug("checkpoint already exists, keeping prior",
				zap.String("phase", string(phase)))
			return
		}
		s.logger.Warn("checkpoint creation failed",
			zap.String("phase", string(phase)), zap.Error(err))
		return
	}

	s.logger.Info("checkpoint created",
		zap.String("phase", string(phase)),
		zap.String("checkpoint_id", cp.ID),
		zap.Int("cumulative_reward", cp.CumulativeReward),
		zap.Int("completed_agents", len(cp.CompletedAgents)),
	)
}

// reviewPhase runs the phase's forensic reviewer through the gate. The bool
// return reports whether a GUILTY verdict halted the run. A phase without a
// reviewer, or a scheduler without a gate, skips review.
func (s *Scheduler) reviewPhase(ctx context.Context, cfg *ExecutionConfig, phase catalog.Phase, evidence []forensics.EvidenceItem, run *runState) (*AgentExecutionResult, bool) {
	if s.gate == nil {
		return nil, false
	}
	reviewer, err := catalog.ReviewerFor(cfg.AgentsByPhase[phase], phase)
	if err != nil {
		return nil, false
	}

	var quality *forensics.QualityBreakdown
	if cfg.QualityFn != nil {
		quality = cfg.QualityFn(phase)
	}

	reviewStart := time.Now()
	caseFile := s.gate.Review(ctx, phase, forensics.MatrixForPhase(phase), evidence, quality)
	duration := time.Since(reviewStart)

	if s.bridge != nil {
		s.bridge.RecordVerdictAsync(caseFile)
	}

	reviewResult := &AgentExecutionResult{
		AgentKey: reviewer.Key,
		Success:  caseFile.Verdict != forensics.VerdictGuilty,
		Output:   caseFile,
		Duration: duration,
	}

	if caseFile.Verdict == forensics.VerdictGuilty {
		s.haltRun(run, phase, reviewer.Key,
			fmt.Sprintf("forensic review returned GUILTY with %s confidence", caseFile.Confidence))
		return reviewResult, true
	}

	reviewResult.RewardEarned = reviewer.Reward
	run.completedAgents = append(run.completedAgents, reviewer.Key)
	return reviewResult, false
}

// missingEvidence flags declared write keys that produced no evidence and
// are absent from memory.
func (s *Scheduler) missingEvidence(ctx context.Context, agents []catalog.AgentMapping, seen map[string]bool) []forensics.EvidenceItem {
	var missing []forensics.EvidenceItem
	for _, m := range agents {
		if m.Reviewer {
			continue
		}
		for _, writeKey := range m.MemoryWrites {
			if seen[writeKey] {
				continue
			}
			_, ok, err := s.memory.Retrieve(ctx, writeKey)
			if err != nil || !ok {
				missing = append(missing, forensics.EvidenceItem{
					Source: writeKey,
					Status: forensics.EvidenceMissing,
					Notes:  fmt.Sprintf("declared by %s but never produced", m.Key),
				})
				seen[writeKey] = true
			}
		}
	}
	return missing
}

// haltRun records the halting failure on the run result.
func (s *Scheduler) haltRun(run *runState, phase catalog.Phase, agentKey, reason string) {
	run.result.Success = false
	run.result.FailedPhase = phase
	run.result.FailedAgent = agentKey
	run.result.RollbackApplied = run.checkpointSeen

	s.logger.Error("pipeline halted",
		zap.String("phase", string(phase)),
		zap.String("agent", agentKey),
		zap.String("reason", reason),
		zap.Bool("rollback_applied", run.result.RollbackApplied),
	)
}

func (s *Scheduler) storeState(ctx context.Context, runID, status string, phases []catalog.Phase, startedAt time.Time) error {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return s.memory.Store(ctx, keyPipelineState, pipelineStateRecord{
		RunID:     runID,
		Status:    status,
		Phases:    names,
		StartedAt: startedAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	})
}

func phaseIndex(agents []catalog.AgentMapping) map[string]catalog.AgentMapping {
	index := make(map[string]catalog.AgentMapping, len(agents))
	for _, m := range agents {
		index[m.Key] = m
	}
	return index
}

func containsPhase(phases []catalog.Phase, phase catalog.Phase) bool {
	for _, p := range phases {
		if p == phase {
			return true
		}
	}
	return false
}
