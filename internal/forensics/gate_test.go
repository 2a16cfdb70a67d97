package forensics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(nil, nil)
	require.NoError(t, err)
	return g
}

func verifiedEvidence(sources ...string) []EvidenceItem {
	items := make([]EvidenceItem, 0, len(sources))
	for _, s := range sources {
		items = append(items, EvidenceItem{Source: s, Status: EvidenceVerified})
	}
	return items
}

func TestGateConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GateConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*GateConfig) {}},
		{name: "pass threshold above one", mutate: func(c *GateConfig) { c.PassThreshold = 1.1 }, wantErr: true},
		{name: "negative pass threshold", mutate: func(c *GateConfig) { c.PassThreshold = -0.1 }, wantErr: true},
		{name: "zero missing ratio", mutate: func(c *GateConfig) { c.MissingEvidenceRatio = 0 }, wantErr: true},
		{name: "inverted confidence ratios", mutate: func(c *GateConfig) { c.LowConfidenceRatio = 0.9 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGateConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCalculatePassRate(t *testing.T) {
	pass := CheckResult{Passed: true}
	fail := CheckResult{Passed: false}

	tests := []struct {
		name    string
		results []CheckResult
		want    float64
	}{
		{name: "empty is zero not NaN", results: nil, want: 0},
		{name: "all passed", results: []CheckResult{pass, pass}, want: 1},
		{name: "all failed", results: []CheckResult{fail, fail}, want: 0},
		{name: "three of four", results: []CheckResult{pass, pass, pass, fail}, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculatePassRate(tt.results), 1e-9)
		})
	}
}

func TestExecuteCheckSuspectEvidenceFails(t *testing.T) {
	g := newGate(t)

	evidence := []EvidenceItem{
		{Source: "design/interfaces", Status: EvidenceSuspect, Notes: "contract drift"},
	}
	result := g.ExecuteCheck(MatrixEntry{Check: "contracts", Method: MethodContractCrossCheck}, evidence, nil)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Actual, "suspect")
	assert.Contains(t, result.Actual, "design/interfaces")
}

func TestExecuteCheckMissingEvidenceFails(t *testing.T) {
	g := newGate(t)

	evidence := []EvidenceItem{
		{Source: "analysis/scope", Status: EvidenceMissing},
	}
	result := g.ExecuteCheck(MatrixEntry{Check: "scope", Method: MethodScopeBoundary}, evidence, nil)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Actual, "missing")
}

func TestExecuteCheckNoRelevantEvidenceFails(t *testing.T) {
	g := newGate(t)

	// Evidence exists, but none of it is for the sources this method inspects.
	evidence := verifiedEvidence("release/artifacts")
	result := g.ExecuteCheck(MatrixEntry{Check: "assumptions", Method: MethodAssumptionScan}, evidence, nil)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Actual, "no evidence")
}

func TestExecuteCheckVerifiedEvidencePasses(t *testing.T) {
	g := newGate(t)

	evidence := verifiedEvidence("exploration/tradeoffs")
	result := g.ExecuteCheck(MatrixEntry{Check: "tradeoffs", Method: MethodTradeoffAudit}, evidence, nil)

	assert.True(t, result.Passed)
}

func TestExecuteCheckUnknownMethodDefaultArm(t *testing.T) {
	g := newGate(t)

	entry := MatrixEntry{Check: "mystery", Method: Method("seance")}

	allVerified := verifiedEvidence("anything/at-all", "somewhere/else")
	assert.True(t, g.ExecuteCheck(entry, allVerified, nil).Passed)

	withSuspect := append(verifiedEvidence("a/b"), EvidenceItem{Source: "c/d", Status: EvidenceSuspect})
	assert.False(t, g.ExecuteCheck(entry, withSuspect, nil).Passed)

	assert.False(t, g.ExecuteCheck(entry, nil, nil).Passed)
}

func TestExecuteCheckQualityThresholds(t *testing.T) {
	g := newGate(t)

	tests := []struct {
		name    string
		entry   MatrixEntry
		quality QualityBreakdown
		sources []string
		passed  bool
	}{
		{
			name:    "coverage above threshold",
			entry:   MatrixEntry{Check: "cov", Method: MethodCoverageThreshold, Threshold: 0.8},
			quality: QualityBreakdown{Coverage: 0.85},
			sources: []string{"testing/coverage"},
			passed:  true,
		},
		{
			name:    "coverage below threshold",
			entry:   MatrixEntry{Check: "cov", Method: MethodCoverageThreshold, Threshold: 0.8},
			quality: QualityBreakdown{Coverage: 0.6},
			sources: []string{"testing/coverage"},
			passed:  false,
		},
		{
			name:    "security findings present",
			entry:   MatrixEntry{Check: "sec", Method: MethodSecurityScan},
			quality: QualityBreakdown{SecurityFindings: 2},
			sources: []string{"review/security"},
			passed:  false,
		},
		{
			name:    "no security findings",
			entry:   MatrixEntry{Check: "sec", Method: MethodSecurityScan},
			quality: QualityBreakdown{},
			sources: []string{"review/security"},
			passed:  true,
		},
		{
			name:    "regressions detected",
			entry:   MatrixEntry{Check: "reg", Method: MethodRegressionCheck},
			quality: QualityBreakdown{RegressionCount: 1},
			sources: []string{"testing/regressions"},
			passed:  false,
		},
		{
			name:    "performance under budget",
			entry:   MatrixEntry{Check: "perf", Method: MethodPerformanceBudget, Threshold: 0.9},
			quality: QualityBreakdown{PerformanceScore: 0.95},
			sources: []string{"review/performance"},
			passed:  true,
		},
		{
			name:    "failing tests block boundary coverage",
			entry:   MatrixEntry{Check: "edges", Method: MethodBoundaryCoverage},
			quality: QualityBreakdown{TestsPassed: 8, TestsTotal: 10},
			sources: []string{"testing/edge-cases"},
			passed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := g.ExecuteCheck(tt.entry, verifiedEvidence(tt.sources...), &tt.quality)
			assert.Equal(t, tt.passed, result.Passed, "actual: %s", result.Actual)
		})
	}
}

func TestExecuteCheckQualityMethodStillFailsOnSuspectEvidence(t *testing.T) {
	g := newGate(t)

	// A perfect quality breakdown cannot override tainted evidence.
	evidence := []EvidenceItem{{Source: "testing/coverage", Status: EvidenceSuspect}}
	result := g.ExecuteCheck(
		MatrixEntry{Check: "cov", Method: MethodCoverageThreshold},
		evidence,
		&QualityBreakdown{Coverage: 1.0},
	)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Actual, "suspect")
}

func TestRunMatrixPreservesOrder(t *testing.T) {
	g := newGate(t)

	matrix := MatrixForPhase(catalog.PhaseDesign)
	results := g.RunMatrix(matrix, verifiedEvidence("design/interfaces"), nil)

	require.Len(t, results, len(matrix))
	for i, entry := range matrix {
		assert.Equal(t, entry.Check, results[i].Check)
		assert.Equal(t, entry.Method, results[i].Method)
	}
}

func TestMatrixForPhaseShape(t *testing.T) {
	for _, phase := range catalog.AllPhases() {
		matrix := MatrixForPhase(phase)
		assert.Len(t, matrix, 3, "phase %s matrix", phase)
		for _, entry := range matrix {
			_, known := expectedSources[entry.Method]
			assert.True(t, known, "phase %s uses unknown method %q", phase, entry.Method)
		}
	}
	assert.Empty(t, MatrixForPhase(catalog.Phase("bogus")))
}

func TestReviewInnocent(t *testing.T) {
	g := newGate(t)

	evidence := verifiedEvidence(
		"analysis/task-profile", "analysis/requirements", "analysis/scope",
		"analysis/assumptions", "analysis/constraints", "analysis/risks",
	)
	cf := g.Review(context.Background(), catalog.PhaseAnalysis, MatrixForPhase(catalog.PhaseAnalysis), evidence, nil)

	require.NotNil(t, cf)
	assert.Equal(t, VerdictInnocent, cf.Verdict)
	assert.Equal(t, ConfidenceHigh, cf.Confidence)
	assert.NotEmpty(t, cf.CaseID)
	assert.Empty(t, cf.Remediations, "remediations only on GUILTY")
	assert.Len(t, cf.VerificationResults, 3)
	assert.False(t, cf.CreatedAt.IsZero())
}

func TestReviewGuilty(t *testing.T) {
	g := newGate(t)

	evidence := []EvidenceItem{
		{Source: "analysis/task-profile", Status: EvidenceVerified},
		{Source: "analysis/requirements", Status: EvidenceVerified},
		{Source: "analysis/scope", Status: EvidenceVerified},
		{Source: "analysis/assumptions", Status: EvidenceSuspect, Notes: "contradicts constraints"},
	}
	cf := g.Review(context.Background(), catalog.PhaseAnalysis, MatrixForPhase(catalog.PhaseAnalysis), evidence, nil)

	assert.Equal(t, VerdictGuilty, cf.Verdict)
	require.NotEmpty(t, cf.Remediations)
	assert.Contains(t, cf.Remediations[0], "assumptions")
}

func TestReviewInsufficientEvidence(t *testing.T) {
	g := newGate(t)

	evidence := []EvidenceItem{
		{Source: "analysis/task-profile", Status: EvidenceVerified},
		{Source: "analysis/requirements", Status: EvidenceMissing},
		{Source: "analysis/scope", Status: EvidenceMissing},
		{Source: "analysis/assumptions", Status: EvidenceMissing},
	}
	cf := g.Review(context.Background(), catalog.PhaseAnalysis, MatrixForPhase(catalog.PhaseAnalysis), evidence, nil)

	assert.Equal(t, VerdictInsufficientEvidence, cf.Verdict)
	assert.Equal(t, ConfidenceLow, cf.Confidence)
	assert.Empty(t, cf.Remediations)
}

func TestReviewNoEvidence(t *testing.T) {
	g := newGate(t)

	cf := g.Review(context.Background(), catalog.PhaseRelease, MatrixForPhase(catalog.PhaseRelease), nil, nil)

	assert.Equal(t, VerdictInsufficientEvidence, cf.Verdict)
	assert.Equal(t, ConfidenceLow, cf.Confidence)
}

func TestDeriveConfidenceBands(t *testing.T) {
	g := newGate(t)

	high := verifiedEvidence("a/1", "a/2", "a/3", "a/4")
	assert.Equal(t, ConfidenceHigh, g.deriveConfidence(high))

	medium := append(verifiedEvidence("a/1", "a/2"), EvidenceItem{Source: "a/3", Status: EvidenceSuspect})
	assert.Equal(t, ConfidenceMedium, g.deriveConfidence(medium))

	low := []EvidenceItem{
		{Source: "a/1", Status: EvidenceVerified},
		{Source: "a/2", Status: EvidenceSuspect},
		{Source: "a/3", Status: EvidenceMissing},
	}
	assert.Equal(t, ConfidenceLow, g.deriveConfidence(low))
}
