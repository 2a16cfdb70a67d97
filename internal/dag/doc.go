// Package dag builds and validates the pipeline dependency graph.
//
// Build produces a PipelineDAG with a deterministic global topological order
// (stable Kahn: lowest priority first, agent key as tie-break) and per-phase
// agent listings sorted by priority. The DAG is built once and read-only
// thereafter.
package dag
