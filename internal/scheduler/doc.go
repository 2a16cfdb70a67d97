// Package scheduler drives phase-by-phase, agent-by-agent pipeline
// execution. Phases run strictly sequentially; within a phase, agents run
// one at a time in dependency/priority order, the scheduler performing all
// memory writes on their behalf. Designated phases are checkpointed before
// any of their agents run, critical-agent failures halt the run, and each
// completed phase is reviewed by its forensic reviewer before the pipeline
// moves on.
package scheduler
