package domain

import perr "ordercast/internal/platform/errors"

// State is the explicit sync cycle lifecycle. The happy path advances
// strictly in order; Failed is reachable from any non-terminal state
type State uint8

// Cycle states in order
const (
	StateIdle State = iota
	StateFetchingProducts
	StateFetchingOrders
	StateAggregating
	StatePredicting
	StatePersisting
	StateDone
	StateFailed
)

// String satisfies fmt.Stringer
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingProducts:
		return "fetching_products"
	case StateFetchingOrders:
		return "fetching_orders"
	case StateAggregating:
		return "aggregating"
	case StatePredicting:
		return "predicting"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Advance validates a transition and returns the target state.
// Legal moves are one step forward along the happy path, or to Failed from
// any non-terminal state
func (s State) Advance(to State) (State, error) {
	if s.Terminal() {
		return s, perr.Newf(perr.ErrorCodeConflict, "sync state %s is terminal", s)
	}
	if to == StateFailed {
		return StateFailed, nil
	}
	if to != s+1 || to > StateDone {
		return s, perr.Newf(perr.ErrorCodeConflict, "illegal sync transition %s -> %s", s, to)
	}
	return to, nil
}
