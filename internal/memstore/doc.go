// Package memstore provides the namespaced key/value coordination contract
// used for inter-agent handoff and checkpoint snapshots.
//
// The scheduler is the only writer during a run: agents return output and the
// scheduler performs the writes, so a single mutex suffices. Checkpoints are
// immutable point-in-time snapshots; RestoreCheckpoint is the explicit,
// caller-driven rollback operation.
package memstore
