package dummy

import (
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/mosaicnetworks/mxboard/src/proxy/inmem"
	"github.com/sirupsen/logrus"
)

// InmemDummyClient is an in-memory implementation of the dummy app. It actually
// imlplements the AppProxy interface, and can be passed in the MXBoard
// constructor directly
type InmemDummyClient struct {
	*inmem.InmemProxy
	state  *State
	logger *logrus.Entry
}

//NewInmemDummyClient instantiates an InmemDummyClient
func NewInmemDummyClient(logger *logrus.Entry) *InmemDummyClient {
	state := NewState(logger)

	proxy := inmem.NewInmemProxy(state, logger)

	client := &InmemDummyClient{
		InmemProxy: proxy,
		state:      state,
		logger:     logger,
	}

	return client
}

//GetCommittedEvents returns the state's list of events
func (c *InmemDummyClient) GetCommittedEvents() []event.Event {
	return c.state.GetCommittedEvents()
}

//GetState returns the last state reported by the node
func (c *InmemDummyClient) GetState() state.State {
	return c.state.GetState()
}
