package proxy

import "github.com/mosaicnetworks/mxboard/src/event"

// CommitCallback is called when an Event is applied to the board.
type CommitCallback func(ev event.Event) error

//DummyCommitCallback is used for testing
func DummyCommitCallback(ev event.Event) error {
	return nil
}
