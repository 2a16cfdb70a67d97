package forensics

import (
	"fmt"
	"strings"
)

// expectedSources maps each method to the memory paths whose evidence the
// strategy inspects. Matching is by exact source or path prefix.
var expectedSources = map[Method][]string{
	MethodCrossReference:       {"analysis/requirements", "analysis/task-profile"},
	MethodAssumptionScan:       {"analysis/assumptions"},
	MethodScopeBoundary:        {"analysis/scope"},
	MethodConstraintFit:        {"exploration/candidates", "analysis/constraints"},
	MethodPatternApplicability: {"exploration/patterns"},
	MethodTradeoffAudit:        {"exploration/tradeoffs"},
	MethodContractCrossCheck:   {"design/interfaces"},
	MethodCycleDetection:       {"design/schema", "exploration/dependencies"},
	MethodTypeSoundness:        {"design/type-hierarchy"},
	MethodExecutionTrace:       {"implementation/core", "design/control-flow"},
	MethodErrorPathProbe:       {"implementation/error-paths"},
	MethodCommentConsistency:   {"implementation/comments", "implementation/core"},
	MethodCoverageThreshold:    {"testing/coverage"},
	MethodBoundaryCoverage:     {"testing/edge-cases"},
	MethodRegressionCheck:      {"testing/regressions"},
	MethodPerformanceBudget:    {"review/performance"},
	MethodSecurityScan:         {"review/security"},
	MethodQualityMetrics:       {"review/complexity", "review/style"},
	MethodDocCompleteness:      {"review/docs", "release/changelog"},
	MethodSignoffCheck:         {"release/signoff"},
	MethodArtifactIntegrity:    {"release/artifacts", "release/verification"},
}

// relevantEvidence filters evidence whose source matches one of the expected
// paths, by exact match or path-segment prefix.
func relevantEvidence(evidence []EvidenceItem, sources []string) []EvidenceItem {
	var out []EvidenceItem
	for _, item := range evidence {
		for _, src := range sources {
			if item.Source == src || strings.HasPrefix(item.Source, src+"/") {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// inspectEvidence applies the VERIFIED-required rule to a set of items:
// any SUSPECT or MISSING item fails the check, and an empty set counts as
// missing evidence.
func inspectEvidence(items []EvidenceItem, sources []string) (passed bool, actual string) {
	if len(items) == 0 {
		return false, fmt.Sprintf("no evidence found for %s", strings.Join(sources, ", "))
	}

	var suspect, missing []string
	for _, item := range items {
		switch item.Status {
		case EvidenceSuspect:
			suspect = append(suspect, item.Source)
		case EvidenceMissing:
			missing = append(missing, item.Source)
		}
	}

	switch {
	case len(suspect) > 0:
		return false, fmt.Sprintf("suspect evidence at %s", strings.Join(suspect, ", "))
	case len(missing) > 0:
		return false, fmt.Sprintf("missing evidence at %s", strings.Join(missing, ", "))
	default:
		return true, fmt.Sprintf("%d evidence item(s) verified", len(items))
	}
}

// thresholdOr returns the entry threshold, or the method default when unset.
func thresholdOr(entry MatrixEntry, def float64) float64 {
	if entry.Threshold > 0 {
		return entry.Threshold
	}
	return def
}

// executeCheck dispatches on the method tag. Quality-based methods first
// apply the evidence rule, then compare the quality breakdown against the
// threshold; when no breakdown is supplied they degrade to the evidence rule
// alone. Unknown methods take the default arm: pass iff every supplied
// evidence item is VERIFIED.
func executeCheck(entry MatrixEntry, evidence []EvidenceItem, quality *QualityBreakdown) CheckResult {
	result := CheckResult{Check: entry.Check, Method: entry.Method}

	sources, known := expectedSources[entry.Method]
	if !known {
		// Default strategy.
		result.Expected = "all supplied evidence VERIFIED"
		result.Passed, result.Actual = inspectEvidence(evidence, []string{"any source"})
		if len(evidence) == 0 {
			result.Passed = false
			result.Actual = "no evidence supplied"
		}
		return result
	}

	relevant := relevantEvidence(evidence, sources)
	evPassed, evActual := inspectEvidence(relevant, sources)

	switch entry.Method {
	case MethodCoverageThreshold:
		threshold := thresholdOr(entry, 0.80)
		result.Expected = fmt.Sprintf("coverage >= %.0f%%", threshold*100)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.Coverage >= threshold
		result.Actual = fmt.Sprintf("coverage %.0f%%", quality.Coverage*100)

	case MethodRegressionCheck:
		allowed := int(thresholdOr(entry, 0))
		result.Expected = fmt.Sprintf("at most %d regression(s)", allowed)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.RegressionCount <= allowed
		result.Actual = fmt.Sprintf("%d regression(s) detected", quality.RegressionCount)

	case MethodPerformanceBudget:
		threshold := thresholdOr(entry, 0.90)
		result.Expected = fmt.Sprintf("performance score >= %.2f", threshold)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.PerformanceScore >= threshold
		result.Actual = fmt.Sprintf("performance score %.2f", quality.PerformanceScore)

	case MethodSecurityScan:
		allowed := int(thresholdOr(entry, 0))
		result.Expected = fmt.Sprintf("at most %d security finding(s)", allowed)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.SecurityFindings <= allowed
		result.Actual = fmt.Sprintf("%d security finding(s)", quality.SecurityFindings)

	case MethodQualityMetrics:
		allowed := int(thresholdOr(entry, 10))
		result.Expected = fmt.Sprintf("at most %d lint finding(s)", allowed)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.LintFindings <= allowed
		result.Actual = fmt.Sprintf("%d lint finding(s)", quality.LintFindings)

	case MethodDocCompleteness:
		threshold := thresholdOr(entry, 0.70)
		result.Expected = fmt.Sprintf("doc coverage >= %.0f%%", threshold*100)
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality == nil {
			result.Passed, result.Actual = true, evActual+" (no quality breakdown supplied)"
			return result
		}
		result.Passed = quality.DocCoverage >= threshold
		result.Actual = fmt.Sprintf("doc coverage %.0f%%", quality.DocCoverage*100)

	case MethodBoundaryCoverage:
		result.Expected = "edge-case evidence verified, all tests passing"
		if !evPassed {
			result.Actual = evActual
			return result
		}
		if quality != nil && quality.TestsTotal > 0 && quality.TestsPassed < quality.TestsTotal {
			result.Actual = fmt.Sprintf("%d/%d tests passing", quality.TestsPassed, quality.TestsTotal)
			return result
		}
		result.Passed, result.Actual = true, evActual

	default:
		// Pure evidence strategies share one rule: every relevant item
		// must be VERIFIED.
		result.Expected = fmt.Sprintf("VERIFIED evidence at %s", strings.Join(sources, ", "))
		result.Passed, result.Actual = evPassed, evActual
	}

	return result
}
