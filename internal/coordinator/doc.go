// Package coordinator runs the cooperative scheduling loop that drives
// registered workers against a shared project memory.
//
// The loop enforces a single-writer policy by traversal, not by locking:
// each tick takes one snapshot, determines whether any role's task
// pointer is in the working state, and offers the turn to workers in
// registration order. The first worker that performs work ends the tick,
// so at most one state-changing action happens per tick and at most one
// role is ever mid-task.
//
// Workers are trusted to be cooperative but not to be correct: an error
// or panic from a worker is caught at the loop boundary, logged, and
// counted as "no work this tick".
package coordinator
