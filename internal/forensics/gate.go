package forensics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

const instrumentationName = "github.com/fyrsmithlabs/orchestd/internal/forensics"

// GateConfig tunes verdict derivation.
type GateConfig struct {
	// PassThreshold is the minimum pass rate for an INNOCENT verdict.
	// Matrices containing critical checks should use 1.0.
	PassThreshold float64 `koanf:"pass_threshold"`

	// MissingEvidenceRatio is the fraction of MISSING evidence above which
	// the gate returns INSUFFICIENT_EVIDENCE instead of a verdict.
	MissingEvidenceRatio float64 `koanf:"missing_evidence_ratio"`

	// HighConfidenceRatio is the VERIFIED fraction at or above which
	// confidence is HIGH.
	HighConfidenceRatio float64 `koanf:"high_confidence_ratio"`

	// LowConfidenceRatio is the VERIFIED fraction below which confidence
	// is LOW.
	LowConfidenceRatio float64 `koanf:"low_confidence_ratio"`
}

// DefaultGateConfig returns the strict defaults: every check must pass.
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		PassThreshold:        1.0,
		MissingEvidenceRatio: 0.5,
		HighConfidenceRatio:  0.8,
		LowConfidenceRatio:   0.5,
	}
}

// Validate checks the config for out-of-range values.
func (c *GateConfig) Validate() error {
	if c.PassThreshold < 0 || c.PassThreshold > 1 {
		return fmt.Errorf("forensics: pass_threshold must be in [0,1], got %v", c.PassThreshold)
	}
	if c.MissingEvidenceRatio <= 0 || c.MissingEvidenceRatio > 1 {
		return fmt.Errorf("forensics: missing_evidence_ratio must be in (0,1], got %v", c.MissingEvidenceRatio)
	}
	if c.LowConfidenceRatio > c.HighConfidenceRatio {
		return fmt.Errorf("forensics: low_confidence_ratio %v exceeds high_confidence_ratio %v",
			c.LowConfidenceRatio, c.HighConfidenceRatio)
	}
	return nil
}

// Gate runs verification matrices and issues case files.
type Gate struct {
	config *GateConfig
	logger *zap.Logger

	tracer      trace.Tracer
	meter       metric.Meter
	caseCounter metric.Int64Counter
}

// NewGate creates a verification gate. A nil config selects the defaults; a
// nil logger selects zap.NewNop.
func NewGate(cfg *GateConfig, logger *zap.Logger) (*Gate, error) {
	if cfg == nil {
		cfg = DefaultGateConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gate{
		config: cfg,
		logger: logger.Named("forensics"),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	g.initMetrics()
	return g, nil
}

func (g *Gate) initMetrics() {
	var err error
	g.caseCounter, err = g.meter.Int64Counter(
		"orchestd.forensics.cases_total",
		metric.WithDescription("Total case files issued, by verdict"),
		metric.WithUnit("{case}"),
	)
	if err != nil {
		g.logger.Warn("failed to create case counter", zap.Error(err))
	}
}

// ExecuteCheck runs a single matrix entry against the evidence and optional
// quality breakdown.
func (g *Gate) ExecuteCheck(entry MatrixEntry, evidence []EvidenceItem, quality *QualityBreakdown) CheckResult {
	return executeCheck(entry, evidence, quality)
}

// RunMatrix applies ExecuteCheck to every entry, preserving order.
func (g *Gate) RunMatrix(matrix []MatrixEntry, evidence []EvidenceItem, quality *QualityBreakdown) []CheckResult {
	results := make([]CheckResult, 0, len(matrix))
	for _, entry := range matrix {
		results = append(results, g.ExecuteCheck(entry, evidence, quality))
	}
	return results
}

// CalculatePassRate returns passed/total, and 0 for an empty input.
func CalculatePassRate(results []CheckResult) float64 {
	if len(results) == 0 {
		return 0
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(results))
}

// Review runs the phase's matrix and derives verdict, confidence, and
// remediations into an immutable CaseFile.
func (g *Gate) Review(ctx context.Context, phase catalog.Phase, matrix []MatrixEntry, evidence []EvidenceItem, quality *QualityBreakdown) *CaseFile {
	ctx, span := g.tracer.Start(ctx, "forensics.review")
	defer span.End()
	span.SetAttributes(
		attribute.String("phase", string(phase)),
		attribute.Int("matrix_entries", len(matrix)),
		attribute.Int("evidence_items", len(evidence)),
	)

	results := g.RunMatrix(matrix, evidence, quality)
	passRate := CalculatePassRate(results)

	verdict := g.deriveVerdict(passRate, evidence)
	confidence := g.deriveConfidence(evidence)

	cf := &CaseFile{
		CaseID:              uuid.New().String(),
		Phase:               phase,
		Verdict:             verdict,
		Confidence:          confidence,
		EvidenceSummary:     summarizeEvidence(evidence),
		VerificationResults: results,
		CreatedAt:           time.Now().UTC(),
	}
	if verdict == VerdictGuilty {
		cf.Remediations = remediations(results)
	}

	if g.caseCounter != nil {
		g.caseCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("phase", string(phase)),
				attribute.String("verdict", string(verdict)),
			))
	}
	g.logger.Info("case file issued",
		zap.String("case_id", cf.CaseID),
		zap.String("phase", string(phase)),
		zap.String("verdict", string(verdict)),
		zap.String("confidence", string(confidence)),
		zap.Float64("pass_rate", passRate),
	)
	return cf
}

// deriveVerdict maps the pass rate and evidence mix onto a verdict. Too much
// MISSING evidence yields INSUFFICIENT_EVIDENCE regardless of the pass rate.
func (g *Gate) deriveVerdict(passRate float64, evidence []EvidenceItem) Verdict {
	if len(evidence) == 0 {
		return VerdictInsufficientEvidence
	}

	missing := 0
	for _, item := range evidence {
		if item.Status == EvidenceMissing {
			missing++
		}
	}
	if float64(missing)/float64(len(evidence)) >= g.config.MissingEvidenceRatio {
		return VerdictInsufficientEvidence
	}

	if passRate >= g.config.PassThreshold {
		return VerdictInnocent
	}
	return VerdictGuilty
}

// deriveConfidence grades the VERIFIED fraction of the evidence.
func (g *Gate) deriveConfidence(evidence []EvidenceItem) Confidence {
	if len(evidence) == 0 {
		return ConfidenceLow
	}

	verified := 0
	for _, item := range evidence {
		if item.Status == EvidenceVerified {
			verified++
		}
	}
	ratio := float64(verified) / float64(len(evidence))

	switch {
	case ratio >= g.config.HighConfidenceRatio:
		return ConfidenceHigh
	case ratio < g.config.LowConfidenceRatio:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// summarizeEvidence produces the one-line evidence tally for the case file.
func summarizeEvidence(evidence []EvidenceItem) string {
	verified, suspect, missing := 0, 0, 0
	for _, item := range evidence {
		switch item.Status {
		case EvidenceVerified:
			verified++
		case EvidenceSuspect:
			suspect++
		case EvidenceMissing:
			missing++
		}
	}
	return fmt.Sprintf("%d verified, %d suspect, %d missing of %d item(s)",
		verified, suspect, missing, len(evidence))
}

// remediations suggests a fix per failed check.
func remediations(results []CheckResult) []string {
	var out []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		out = append(out, fmt.Sprintf("%s: expected %s, got %s", r.Check, r.Expected, r.Actual))
	}
	return out
}
