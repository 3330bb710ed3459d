// Package statemachine provides a small, type-safe transition table for
// finite-state machines whose current state lives outside the process
// (for example in a database row).
//
// Unlike an in-memory machine that owns its current state, a Table only
// answers questions about transitions: which targets are reachable from a
// state, and whether a given from/to pair is allowed. The caller loads the
// current state, asks the table, then persists the new state itself.
//
// # Usage
//
//	const (
//	    Draft     = statemachine.StringState("draft")
//	    Published = statemachine.StringState("published")
//	    Archived  = statemachine.StringState("archived")
//	)
//
//	table := statemachine.MustNewTable(
//	    statemachine.WithTransitions(Draft, Published, Archived),
//	    statemachine.WithTransitions(Published, Archived),
//	    statemachine.WithTerminal(Archived),
//	)
//
//	if err := table.Validate(Draft, Published); err != nil {
//	    // statemachine.IsInvalidTransitionError(err) == true
//	}
//
// A transition from a state to itself is always allowed and is reported as a
// no-op by IsNoop, so callers can skip the write entirely.
//
// # Concurrency
//
// A Table is immutable after construction and safe for concurrent use.
package statemachine
