// Package forensics implements the evidence-driven verification gate that
// sits between pipeline phases.
//
// After a phase's work agents complete, the gate runs that phase's
// verification matrix against the evidence collected during the phase and
// issues an immutable CaseFile: a verdict (INNOCENT, GUILTY, or
// INSUFFICIENT_EVIDENCE) with a confidence grade, the individual check
// results, and remediation suggestions when the verdict is GUILTY. A GUILTY
// verdict is a critical failure and halts the pipeline.
package forensics
