package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/config"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
	"github.com/fyrsmithlabs/orchestd/internal/learning"
	"github.com/fyrsmithlabs/orchestd/internal/logging"
	"github.com/fyrsmithlabs/orchestd/internal/memstore"
	"github.com/fyrsmithlabs/orchestd/internal/scheduler"
	"github.com/fyrsmithlabs/orchestd/internal/telemetry"
)

var (
	runStartPhase int
	runEndPhase   int
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the agent pipeline",
	Long: `Execute the pipeline phase by phase against the built-in agent catalog.

Examples:
  # Dry-run the full pipeline with canned agent outputs
  orchestd run --dry-run

  # Dry-run only phases 4 through 7
  orchestd run --dry-run --start-phase 4 --end-phase 7`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().IntVar(&runStartPhase, "start-phase", 0, "first phase to run, 1-indexed (0 = from the beginning)")
	runCmd.Flags().IntVar(&runEndPhase, "end-phase", 0, "last phase to run, 1-indexed inclusive (0 = to the end)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use the static executor instead of a real agent backend")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	provider, err := telemetry.New(ctx, &cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := provider.Shutdown(ctx); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(shutdownErr))
		}
	}()

	if !runDryRun {
		// Real agent execution means embedding the scheduler as a library
		// and supplying an AgentExecutor backed by a model runtime.
		return fmt.Errorf("no agent backend configured; use --dry-run for a static execution")
	}

	memory, err := memstore.NewInMemory(cfg.Memory.Namespace, logger)
	if err != nil {
		return err
	}

	gate, err := forensics.NewGate(&forensics.GateConfig{
		PassThreshold:        cfg.Gate.PassThreshold,
		MissingEvidenceRatio: cfg.Gate.MissingEvidenceRatio,
		HighConfidenceRatio:  cfg.Gate.HighConfidenceRatio,
		LowConfidenceRatio:   cfg.Gate.LowConfidenceRatio,
	}, logger)
	if err != nil {
		return err
	}

	// Without a learner backend the bridge is a no-op; pattern recording
	// still needs a store when one is wired in.
	bridge := learning.NewBridge(&learning.Config{
		Enabled:          cfg.Learning.Enabled,
		PatternThreshold: cfg.Learning.PatternThreshold,
		SubmitTimeout:    cfg.Learning.SubmitTimeout.Duration(),
	}, nil, learning.NewInMemoryPatternStore(), nil, logger)
	defer bridge.Close()

	sched, err := scheduler.New(memory, scheduler.NewStaticExecutor(), gate, bridge, logger)
	if err != nil {
		return err
	}

	execCfg, err := scheduler.DefaultExecutionConfig()
	if err != nil {
		return err
	}
	execCfg.MemoryNamespace = cfg.Memory.Namespace
	execCfg.CheckpointPhases = cfg.CheckpointPhases()
	execCfg.AgentTimeout = cfg.Pipeline.AgentTimeout.Duration()
	execCfg.PipelineTimeout = cfg.Pipeline.PipelineTimeout.Duration()

	execCfg.StartPhase = cfg.Pipeline.StartPhase
	execCfg.EndPhase = cfg.Pipeline.EndPhase
	if runStartPhase > 0 {
		execCfg.StartPhase = runStartPhase
	}
	if runEndPhase > 0 {
		execCfg.EndPhase = runEndPhase
	}

	result, err := sched.Execute(ctx, execCfg)
	if err != nil {
		return err
	}

	printResult(cmd, result)
	if !result.Success {
		return fmt.Errorf("pipeline failed in phase %s at agent %s", result.FailedPhase, result.FailedAgent)
	}
	return nil
}

func printResult(cmd *cobra.Command, result *scheduler.PipelineExecutionResult) {
	cmd.Printf("run %s: success=%v reward=%d duration=%s\n",
		result.RunID, result.Success, result.TotalReward, result.Duration.Round(time.Millisecond))

	for _, pr := range result.PhaseResults {
		verdict := "-"
		if pr.CaseFile != nil {
			verdict = fmt.Sprintf("%s (%s)", pr.CaseFile.Verdict, pr.CaseFile.Confidence)
		}
		cmd.Printf("  %-15s success=%-5v reward=%-4d agents=%-2d verdict=%s\n",
			pr.Phase, pr.Success, pr.Reward, len(pr.AgentResults), verdict)
	}

	if !result.Success {
		cmd.Printf("failed: phase=%s agent=%s rollback_available=%v\n",
			result.FailedPhase, result.FailedAgent, result.RollbackApplied)
	}
}
