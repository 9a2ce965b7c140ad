package proxy

import (
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
)

// AppProxy defines the interface which is used by the node to communicate with
// the application. Intents submitted by the application come in through
// SubmitCh; Events applied to the board are passed back through CommitEvent.
type AppProxy interface {
	SubmitCh() chan event.Intent
	CommitEvent(ev event.Event) error
	OnStateChanged(state.State) error
}
