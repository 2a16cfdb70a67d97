package forensics

import (
	"time"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

// EvidenceStatus grades a single evidence item.
type EvidenceStatus string

const (
	// EvidenceVerified means the fact was confirmed.
	EvidenceVerified EvidenceStatus = "VERIFIED"

	// EvidenceMissing means the expected fact was never produced.
	EvidenceMissing EvidenceStatus = "MISSING"

	// EvidenceSuspect means the fact exists but its integrity is in doubt.
	EvidenceSuspect EvidenceStatus = "SUSPECT"
)

// EvidenceItem is a named, statused fact supporting a verification check.
// Source is the memory path the fact came from (e.g. "design/interfaces").
type EvidenceItem struct {
	Source string         `json:"source"`
	Status EvidenceStatus `json:"status"`
	Notes  string         `json:"notes,omitempty"`
	Data   any            `json:"data,omitempty"`
}

// Method is the tagged verification-method family. Each method is a fixed
// strategy; unknown tags fall back to the default strategy (pass iff all
// supplied evidence is VERIFIED).
type Method string

const (
	// Analysis-phase methods.
	MethodCrossReference   Method = "cross-reference"   // requirement completeness
	MethodAssumptionScan   Method = "assumption-scan"   // unstated assumptions
	MethodScopeBoundary    Method = "scope-boundary"    // explicit scope limits

	// Exploration-phase methods.
	MethodConstraintFit        Method = "constraint-fit"        // candidates vs constraints
	MethodPatternApplicability Method = "pattern-applicability" // pattern fit
	MethodTradeoffAudit        Method = "tradeoff-audit"        // trade-off documentation

	// Design-phase methods.
	MethodContractCrossCheck Method = "contract-cross-check" // interface/API contracts
	MethodCycleDetection     Method = "cycle-detection"      // dependency cycles
	MethodTypeSoundness      Method = "type-soundness"       // type-hierarchy soundness

	// Implementation-phase methods.
	MethodExecutionTrace     Method = "execution-trace"     // trace vs design artifact
	MethodErrorPathProbe     Method = "error-path-probe"    // error/exception paths
	MethodCommentConsistency Method = "comment-consistency" // comments vs implementation

	// Testing-phase methods.
	MethodCoverageThreshold Method = "coverage-threshold" // coverage vs target
	MethodBoundaryCoverage  Method = "boundary-coverage"  // edge-case coverage
	MethodRegressionCheck   Method = "regression-check"   // regressions

	// Review-phase methods.
	MethodPerformanceBudget Method = "performance-budget" // perf vs targets
	MethodSecurityScan      Method = "security-scan"      // vulnerability scan
	MethodQualityMetrics    Method = "quality-metrics"    // complexity/quality

	// Release-phase methods.
	MethodDocCompleteness   Method = "doc-completeness"   // documentation
	MethodSignoffCheck      Method = "signoff-check"      // review sign-off
	MethodArtifactIntegrity Method = "artifact-integrity" // release artifacts
)

// MatrixEntry is one row of a phase's verification matrix.
type MatrixEntry struct {
	// Check is the human-readable name of what is being verified.
	Check string `json:"check"`

	// Method selects the verification strategy.
	Method Method `json:"method"`

	// Threshold is the numeric bar for quality-based methods (coverage
	// ratio, max findings, minimum score). Zero means the method default.
	Threshold float64 `json:"threshold,omitempty"`
}

// CheckResult records the outcome of a single verification check.
type CheckResult struct {
	Check    string `json:"check"`
	Method   Method `json:"method"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// Verdict is the gate's judgment on a phase's work.
type Verdict string

const (
	VerdictInnocent             Verdict = "INNOCENT"
	VerdictGuilty               Verdict = "GUILTY"
	VerdictInsufficientEvidence Verdict = "INSUFFICIENT_EVIDENCE"
)

// Confidence grades how much evidence backs the verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// QualityBreakdown is the optional quality-score input consumed by the
// testing- and review-family strategies.
type QualityBreakdown struct {
	TestsPassed      int     `json:"tests_passed"`
	TestsTotal       int     `json:"tests_total"`
	Coverage         float64 `json:"coverage"`          // 0.0-1.0
	RegressionCount  int     `json:"regression_count"`
	PerformanceScore float64 `json:"performance_score"` // 0.0-1.0, 1.0 = meets all targets
	SecurityFindings int     `json:"security_findings"`
	LintFindings     int     `json:"lint_findings"`
	DocCoverage      float64 `json:"doc_coverage"` // 0.0-1.0
}

// CaseFile is the immutable record of one phase's forensic review. It is the
// unit consumed by the learning bridge.
type CaseFile struct {
	CaseID              string        `json:"case_id"`
	Phase               catalog.Phase `json:"phase"`
	Verdict             Verdict       `json:"verdict"`
	Confidence          Confidence    `json:"confidence"`
	EvidenceSummary     string        `json:"evidence_summary"`
	VerificationResults []CheckResult `json:"verification_results"`
	Remediations        []string      `json:"remediations,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}
