package forensics

import "github.com/fyrsmithlabs/orchestd/internal/catalog"

// phaseMatrices are the built-in verification matrices, three checks per
// phase. Callers may substitute their own matrix when reviewing.
var phaseMatrices = map[catalog.Phase][]MatrixEntry{
	catalog.PhaseAnalysis: {
		{Check: "requirements cross-referenced against task", Method: MethodCrossReference},
		{Check: "unstated assumptions surfaced", Method: MethodAssumptionScan},
		{Check: "scope boundaries made explicit", Method: MethodScopeBoundary},
	},
	catalog.PhaseExploration: {
		{Check: "candidate solutions satisfy constraints", Method: MethodConstraintFit},
		{Check: "mined patterns applicable to the task", Method: MethodPatternApplicability},
		{Check: "trade-offs documented per candidate", Method: MethodTradeoffAudit},
	},
	catalog.PhaseDesign: {
		{Check: "interface contracts cross-checked", Method: MethodContractCrossCheck},
		{Check: "no dependency cycles in the design", Method: MethodCycleDetection},
		{Check: "type hierarchy is sound", Method: MethodTypeSoundness},
	},
	catalog.PhaseImplementation: {
		{Check: "execution traces match the design", Method: MethodExecutionTrace},
		{Check: "error paths exercised", Method: MethodErrorPathProbe},
		{Check: "comments consistent with implementation", Method: MethodCommentConsistency},
	},
	catalog.PhaseTesting: {
		{Check: "coverage meets threshold", Method: MethodCoverageThreshold, Threshold: 0.80},
		{Check: "boundary and edge cases covered", Method: MethodBoundaryCoverage},
		{Check: "no regressions introduced", Method: MethodRegressionCheck},
	},
	catalog.PhaseReview: {
		{Check: "performance within budget", Method: MethodPerformanceBudget, Threshold: 0.90},
		{Check: "no open security findings", Method: MethodSecurityScan},
		{Check: "quality metrics within limits", Method: MethodQualityMetrics, Threshold: 10},
	},
	catalog.PhaseRelease: {
		{Check: "documentation complete", Method: MethodDocCompleteness, Threshold: 0.70},
		{Check: "sign-off recorded", Method: MethodSignoffCheck},
		{Check: "release artifacts intact", Method: MethodArtifactIntegrity},
	},
}

// MatrixForPhase returns a copy of the built-in verification matrix for a
// phase. Unknown phases get an empty matrix.
func MatrixForPhase(phase catalog.Phase) []MatrixEntry {
	return append([]MatrixEntry(nil), phaseMatrices[phase]...)
}
