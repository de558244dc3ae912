// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

// State is a step of a sync run.
type State string

// Run states. Failed is reachable from every state except Idle.
const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateFetching       State = "fetching"
	StateAggregating    State = "aggregating"
	StatePersisting     State = "persisting"
	StateNotifying      State = "notifying"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next lists the forward transition out of each non-terminal state.
var next = map[State]State{
	StateIdle:           StateAuthenticating,
	StateAuthenticating: StateFetching,
	StateFetching:       StateAggregating,
	StateAggregating:    StatePersisting,
	StatePersisting:     StateNotifying,
	StateNotifying:      StateDone,
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateIdle && !from.Terminal()
	}
	return next[from] == to
}
