package extension

// State represents the lifecycle state of the Store.
type State int

// Store states.
const (
	// StateUninitialized - the store has been created but no cycle has run.
	StateUninitialized State = iota

	// StateLoading - the initial scan/sync cycle is running.
	StateLoading

	// StateReady - the manifest reflects the last completed cycle.
	StateReady

	// StateReloading - a subsequent cycle is running; readers still see
	// the previous manifest until the swap.
	StateReloading
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateReloading:
		return "reloading"
	default:
		return "unknown"
	}
}
