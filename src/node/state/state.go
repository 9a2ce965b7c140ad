package state

import (
	"sync/atomic"
)

// State captures the position of a node in the mutual-exclusion protocol:
// Idle, Requesting, InCriticalSection, or Shutdown.
type State uint32

const (
	// Idle is the state in which a node neither holds nor wants the critical
	// section. It replies to every Request immediately.
	Idle State = iota

	// Requesting is the state in which a node has broadcast a Request and waits
	// for a Reply from every peer.
	Requesting

	// InCriticalSection is the state in which a node has applied its Event and
	// waits for every peer to acknowledge it.
	InCriticalSection

	// Shutdown is the state in which a node stops processing messages and
	// closes its messenger.
	Shutdown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Requesting:
		return "Requesting"
	case InCriticalSection:
		return "InCriticalSection"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods that are safe to call from
// any goroutine.
type Manager struct {
	state State
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
