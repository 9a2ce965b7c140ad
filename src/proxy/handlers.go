package proxy

import (
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
)

// ProxyHandler encapsulates callbacks to be called by the InmemProxy. This is
// the true contact surface between the node and the application.
type ProxyHandler interface {
	// CommitHandler is called every time an Event is applied to the board,
	// whether it was created locally or by another node.
	CommitHandler(ev event.Event) error

	// StateChangeHandler is called by OnStateChanged to notify that the node
	// entered a certain state
	StateChangeHandler(state.State) error
}
