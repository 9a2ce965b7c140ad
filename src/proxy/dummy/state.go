package dummy

import (
	"sync"

	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/sirupsen/logrus"
)

// State is a dummy application which logs and records the Events committed to
// the board.
type State struct {
	sync.RWMutex
	committed []event.Event
	lastState state.State
	logger    *logrus.Entry
}

// NewState ...
func NewState(logger *logrus.Entry) *State {
	return &State{
		committed: []event.Event{},
		logger:    logger,
	}
}

// CommitHandler implements the ProxyHandler interface
func (a *State) CommitHandler(ev event.Event) error {
	a.logger.WithField("event", ev.String()).Debug("CommitEvent")

	a.Lock()
	defer a.Unlock()

	a.committed = append(a.committed, ev)

	return nil
}

// StateChangeHandler implements the ProxyHandler interface
func (a *State) StateChangeHandler(s state.State) error {
	a.logger.WithField("state", s).Debug("StateChange")

	a.Lock()
	defer a.Unlock()

	a.lastState = s

	return nil
}

// GetCommittedEvents returns the list of Events committed so far, in order.
func (a *State) GetCommittedEvents() []event.Event {
	a.RLock()
	defer a.RUnlock()

	res := make([]event.Event, len(a.committed))
	copy(res, a.committed)

	return res
}

// GetState returns the last state the node reported.
func (a *State) GetState() state.State {
	a.RLock()
	defer a.RUnlock()
	return a.lastState
}
