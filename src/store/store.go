package store

import (
	"github.com/mosaicnetworks/mxboard/src/event"
)

// Store holds the board: the entries and the events that shaped them. Apply is
// idempotent on the event id, so an event received twice only modifies the
// board once.
type Store interface {
	Apply(*event.Event) (bool, error)
	GetEntry(string) (*Entry, error)
	Entries() ([]*Entry, error)
	GetEvent(event.ID) (*event.Event, error)
	HasEvent(event.ID) bool
	AppliedEvents() ([]*event.Event, error)
	Close() error
	StorePath() string
}
