package catalog

// Phase identifies one of the seven ordered pipeline phases.
type Phase string

const (
	// PhaseAnalysis decomposes the task into requirements, scope, and risks.
	PhaseAnalysis Phase = "analysis"

	// PhaseExploration surveys the codebase and sketches candidate solutions.
	PhaseExploration Phase = "exploration"

	// PhaseDesign produces interfaces, schemas, and the design document.
	PhaseDesign Phase = "design"

	// PhaseImplementation builds the solution against the design artifacts.
	PhaseImplementation Phase = "implementation"

	// PhaseTesting authors and runs the test suites.
	PhaseTesting Phase = "testing"

	// PhaseReview covers performance, security, and quality review.
	PhaseReview Phase = "review"

	// PhaseRelease packages artifacts and collects final sign-off.
	PhaseRelease Phase = "release"
)

// AllPhases returns the seven phases in execution order.
func AllPhases() []Phase {
	return []Phase{
		PhaseAnalysis,
		PhaseExploration,
		PhaseDesign,
		PhaseImplementation,
		PhaseTesting,
		PhaseReview,
		PhaseRelease,
	}
}

// Index returns the 1-based position of the phase in execution order,
// or 0 if the phase is unknown.
func (p Phase) Index() int {
	for i, ph := range AllPhases() {
		if ph == p {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether p is one of the seven known phases.
func (p Phase) Valid() bool {
	return p.Index() != 0
}

// PhaseAt returns the phase at the given 1-based position.
func PhaseAt(n int) (Phase, bool) {
	phases := AllPhases()
	if n < 1 || n > len(phases) {
		return "", false
	}
	return phases[n-1], true
}
