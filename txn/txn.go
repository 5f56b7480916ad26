// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txn provides the transactional-boundary helper spec.md §9
// requires ("all state mutation must be revertible"): every multi-step
// mutation (the executor settling a whole Solution) must leave no partial
// effect behind on failure. Grounded on the teacher's flash-accounting
// settle/revert shape (dex/pool_manager.go tracks a currentDeltas map per
// locker and requires it fully settled before a callback commits,
// reverting the callback entirely otherwise); this module has no
// delta-tracking ledger to piggyback on, so it generalizes the same
// all-or-nothing discipline into an explicit snapshot-and-restore
// checkpoint taken from every participant up front.
package txn

// Checkpointer is anything Run can snapshot before attempting a mutation
// and roll back afterwards. Every shared-state component the executor
// touches (ledger.Memory, intent.Registry, the AMM registries) implements
// it.
type Checkpointer interface {
	Checkpoint() Restorer
}

// Restorer undoes every mutation made since the Checkpoint call that
// produced it.
type Restorer interface {
	Restore()
}

// Run snapshots every participant, runs fn, and restores all of them to
// their pre-call state if fn returns an error. Participants are
// checkpointed in order and restored in the same order; order does not
// matter for correctness since each participant's checkpoint is
// independent, but a fixed order keeps behaviour reproducible.
func Run(fn func() error, participants ...Checkpointer) error {
	restorers := make([]Restorer, len(participants))
	for i, p := range participants {
		restorers[i] = p.Checkpoint()
	}

	if err := fn(); err != nil {
		for _, r := range restorers {
			r.Restore()
		}
		return err
	}
	return nil
}
