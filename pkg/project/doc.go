// Package project provides the canonical shared state of one Warren
// project ("project memory") and the storage adapters that persist it.
//
// The state is owned exclusively by a Memory and mutated only through its
// guarded mutators. Every mutation is applied to a working copy, durably
// written through a Store, and only then committed in-memory, so a crash
// between mutation and save can never lose an acknowledged write.
// External readers get deep-copy snapshots and can never alias internal
// state.
//
// Scheduling safety is a property of the coordinator's single-writer
// traversal policy, not of this package; the internal lock exists only so
// observers (CLI, bus handlers) can snapshot concurrently with the
// scheduling goroutine.
package project
