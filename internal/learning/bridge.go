package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
)

// FeedbackOptions carries verdict context alongside the scalar quality.
type FeedbackOptions struct {
	Phase      catalog.Phase       `json:"phase"`
	Verdict    forensics.Verdict   `json:"verdict"`
	Confidence forensics.Confidence `json:"confidence"`
	Tags       []string            `json:"tags,omitempty"`
}

// WeightUpdateResult is what the backing learner reports for one feedback
// submission.
type WeightUpdateResult struct {
	TrajectoryID string  `json:"trajectory_id"`
	Quality      float64 `json:"quality"`
	Accepted     bool    `json:"accepted"`
	NewWeight    float64 `json:"new_weight,omitempty"`
}

// Learner is the weight/trajectory backend the bridge submits feedback to.
type Learner interface {
	ProvideFeedback(ctx context.Context, trajectoryID string, quality float64, opts FeedbackOptions) (*WeightUpdateResult, error)
}

// Config tunes the bridge.
type Config struct {
	// Enabled gates all bridge activity. Disabled bridges are no-ops.
	Enabled bool `koanf:"enabled"`

	// PatternThreshold is the minimum quality at which a reusable pattern
	// is recorded.
	PatternThreshold float64 `koanf:"pattern_threshold"`

	// SubmitTimeout bounds each background submission.
	SubmitTimeout time.Duration `koanf:"submit_timeout"`
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		PatternThreshold: 0.75,
		SubmitTimeout:    10 * time.Second,
	}
}

// Bridge translates case files into learner feedback and pattern records.
type Bridge struct {
	config   *Config
	learner  Learner
	patterns PatternStore // local reusable patterns, any verdict above threshold
	longTerm PatternStore // INNOCENT-only promotion target, may be nil
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewBridge creates a learning bridge. learner may be nil, in which case the
// bridge is a no-op regardless of config. patterns and longTerm may each be
// nil to disable the corresponding recording.
func NewBridge(cfg *Config, learner Learner, patterns, longTerm PatternStore, logger *zap.Logger) *Bridge {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		config:   cfg,
		learner:  learner,
		patterns: patterns,
		longTerm: longTerm,
		logger:   logger.Named("learning"),
	}
}

// QualityForVerdict maps a verdict and confidence to the scalar quality
// signal: a base per verdict scaled by a confidence factor.
func QualityForVerdict(v forensics.Verdict, c forensics.Confidence) float64 {
	var base float64
	switch v {
	case forensics.VerdictInnocent:
		base = 0.9
	case forensics.VerdictGuilty:
		base = 0.3
	default:
		base = 0.5
	}

	var factor float64
	switch c {
	case forensics.ConfidenceHigh:
		factor = 1.0
	case forensics.ConfidenceMedium:
		factor = 0.8
	default:
		factor = 0.6
	}
	return base * factor
}

// RecordVerdict submits the case file's quality signal synchronously and
// returns the learner's result. A disabled or learner-less bridge returns
// (nil, nil). Errors are returned for inspection but are also safe to
// ignore; RecordVerdictAsync is the fire-and-forget form used by the
// scheduler.
func (b *Bridge) RecordVerdict(ctx context.Context, cf *forensics.CaseFile) (*WeightUpdateResult, error) {
	if !b.config.Enabled || b.learner == nil || cf == nil {
		return nil, nil
	}

	quality := QualityForVerdict(cf.Verdict, cf.Confidence)
	opts := FeedbackOptions{
		Phase:      cf.Phase,
		Verdict:    cf.Verdict,
		Confidence: cf.Confidence,
		Tags:       []string{"forensics", string(cf.Phase)},
	}

	result, err := b.learner.ProvideFeedback(ctx, cf.CaseID, quality, opts)
	if err != nil {
		return nil, fmt.Errorf("learning: feedback for case %s: %w", cf.CaseID, err)
	}

	if quality >= b.config.PatternThreshold {
		b.recordPatterns(ctx, cf, quality)
	}
	return result, nil
}

// RecordVerdictAsync submits on a tracked goroutine. Failures are logged and
// swallowed; the critical path never waits on the learner.
func (b *Bridge) RecordVerdictAsync(cf *forensics.CaseFile) {
	if !b.config.Enabled || b.learner == nil || cf == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx := context.Background()
		if b.config.SubmitTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.config.SubmitTimeout)
			defer cancel()
		}

		if _, err := b.RecordVerdict(ctx, cf); err != nil {
			b.logger.Warn("verdict submission failed",
				zap.String("case_id", cf.CaseID),
				zap.String("phase", string(cf.Phase)),
				zap.Error(err),
			)
		}
	}()
}

// recordPatterns stores the reusable pattern locally and, for INNOCENT
// verdicts only, promotes it to the long-term store. Store failures are
// logged, never propagated.
func (b *Bridge) recordPatterns(ctx context.Context, cf *forensics.CaseFile, quality float64) {
	p := PatternFromCaseFile(cf, quality)

	if b.patterns != nil {
		if err := b.patterns.RecordPattern(ctx, p); err != nil {
			b.logger.Warn("pattern recording failed",
				zap.String("case_id", cf.CaseID), zap.Error(err))
		}
	}

	if b.longTerm != nil && cf.Verdict == forensics.VerdictInnocent {
		if err := b.longTerm.RecordPattern(ctx, p); err != nil {
			b.logger.Warn("long-term promotion failed",
				zap.String("case_id", cf.CaseID), zap.Error(err))
		}
	}
}

// Close waits for in-flight background submissions to drain.
func (b *Bridge) Close() {
	b.wg.Wait()
}
