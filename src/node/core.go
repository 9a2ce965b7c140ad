package node

import (
	"fmt"
	"sort"

	"github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/net"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/mosaicnetworks/mxboard/src/store"
	"github.com/sirupsen/logrus"
)

// Sender is used by the Core to reach the other nodes. Messages sent to a peer
// must be delivered in order.
type Sender interface {
	Send(peer uint32, msg *net.AppMessage) error
	Broadcast(msg *net.AppMessage) error
}

type deferredRequest struct {
	from    uint32
	eventID event.ID
}

// Core is the Ricart-Agrawala state machine of a node. It is not safe for
// concurrent use; the Node serializes calls with its coreLock.
type Core struct {
	id    uint32
	peers *peers.PeerSet

	store  store.Store
	sender Sender

	clock     *common.LamportClock
	generator *event.Generator
	state     state.Manager

	// active is the Event this node is requesting the critical section for, or
	// applying inside it.
	active *event.Event

	// pending contains the peers whose Reply to the active request is still
	// missing.
	pending map[uint32]bool

	// outstanding contains the peers that have not acknowledged the
	// propagation of the active Event yet.
	outstanding map[uint32]bool

	// deferred holds the Requests that will be answered once this node returns
	// to Idle, in arrival order.
	deferred []deferredRequest

	// intents are waiting for their turn to become Events.
	intents []event.Intent

	commitCallback      func(event.Event) error
	stateChangeCallback func(state.State) error

	rounds  int
	applied int

	logger *logrus.Entry
}

// NewCore ...
func NewCore(id uint32,
	peers *peers.PeerSet,
	store store.Store,
	sender Sender,
	commitCallback func(event.Event) error,
	stateChangeCallback func(state.State) error,
	logger *logrus.Entry) *Core {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	core := &Core{
		id:                  id,
		peers:               peers,
		store:               store,
		sender:              sender,
		clock:               common.NewLamportClock(0),
		generator:           event.NewGenerator(id),
		pending:             make(map[uint32]bool),
		outstanding:         make(map[uint32]bool),
		commitCallback:      commitCallback,
		stateChangeCallback: stateChangeCallback,
		logger:              logger.WithField("this_id", id),
	}

	core.state.SetState(state.Idle)

	return core
}

// Bootstrap resumes the Lamport clock and the event counter from the events
// already applied to the store, so that a restarted node never reuses an ID.
func (c *Core) Bootstrap() error {
	events, err := c.store.AppliedEvents()
	if err != nil {
		return err
	}

	var maxTs uint64
	for _, ev := range events {
		c.generator.Observe(ev.ID)
		if ev.Timestamp > maxTs {
			maxTs = ev.Timestamp
		}
	}

	if maxTs > 0 {
		c.clock.Update(maxTs)
	}

	c.applied = len(events)

	return nil
}

/*******************************************************************************
Local intents
*******************************************************************************/

// Submit queues an Intent. If the node is Idle, a new round starts right away.
func (c *Core) Submit(intent event.Intent) error {
	c.intents = append(c.intents, intent)

	if c.state.GetState() == state.Idle {
		return c.startNextRound()
	}

	return nil
}

func (c *Core) startNextRound() error {
	if len(c.intents) == 0 {
		return nil
	}

	intent := c.intents[0]
	c.intents = c.intents[1:]

	ts := c.clock.Increment()
	c.active = event.NewEvent(c.generator.Next(), intent.Kind, intent.Key, intent.Value, ts)
	c.rounds++

	c.pending = make(map[uint32]bool)
	for _, id := range c.peers.Others(c.id) {
		c.pending[id] = true
	}

	c.setState(state.Requesting)

	c.logger.WithFields(logrus.Fields{
		"event":   c.active,
		"pending": len(c.pending),
	}).Debug("Requesting critical section")

	if len(c.pending) == 0 {
		return c.enterCriticalSection()
	}

	return c.sender.Broadcast(&net.AppMessage{
		Type:      net.Request,
		SenderID:  c.id,
		Timestamp: ts,
		EventID:   c.active.ID,
		Event:     c.active,
	})
}

/*******************************************************************************
Inbound messages
*******************************************************************************/

// HandleMessage processes an AppMessage received from a peer.
func (c *Core) HandleMessage(from uint32, msg *net.AppMessage) error {
	c.clock.Update(msg.Timestamp)

	switch msg.Type {
	case net.Request:
		return c.handleRequest(from, msg)
	case net.Reply:
		return c.handleReply(from, msg)
	case net.Propagate:
		return c.handlePropagate(from, msg)
	case net.PropagateAck:
		return c.handlePropagateAck(from, msg)
	default:
		return fmt.Errorf("unknown message type %d from %d", msg.Type, from)
	}
}

func (c *Core) handleRequest(from uint32, msg *net.AppMessage) error {
	switch c.state.GetState() {
	case state.Idle:
		return c.reply(from, msg.EventID)
	case state.Requesting:
		if event.Precedes(msg.Timestamp, msg.EventID, c.active.Timestamp, c.active.ID) {
			return c.reply(from, msg.EventID)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"from":  from,
		"event": msg.EventID,
	}).Debug("Deferring Request")

	c.deferred = append(c.deferred, deferredRequest{from: from, eventID: msg.EventID})

	return nil
}

func (c *Core) handleReply(from uint32, msg *net.AppMessage) error {
	if c.state.GetState() != state.Requesting ||
		c.active == nil ||
		msg.EventID != c.active.ID ||
		!c.pending[from] {

		c.logger.WithFields(logrus.Fields{
			"from":  from,
			"event": msg.EventID,
			"state": c.state.GetState(),
		}).Debug("Dropping stale Reply")

		return nil
	}

	delete(c.pending, from)

	if len(c.pending) == 0 {
		return c.enterCriticalSection()
	}

	return nil
}

func (c *Core) handlePropagate(from uint32, msg *net.AppMessage) error {
	if msg.Event == nil {
		c.logger.WithField("from", from).Warn("Propagate without Event")
		return nil
	}

	if err := c.apply(msg.Event); err != nil {
		return err
	}

	return c.sender.Send(from, &net.AppMessage{
		Type:      net.PropagateAck,
		SenderID:  c.id,
		Timestamp: c.clock.Increment(),
		EventID:   msg.Event.ID,
	})
}

func (c *Core) handlePropagateAck(from uint32, msg *net.AppMessage) error {
	if c.state.GetState() != state.InCriticalSection ||
		c.active == nil ||
		msg.EventID != c.active.ID ||
		!c.outstanding[from] {

		c.logger.WithFields(logrus.Fields{
			"from":  from,
			"event": msg.EventID,
			"state": c.state.GetState(),
		}).Debug("Dropping stale PropagateAck")

		return nil
	}

	delete(c.outstanding, from)

	if len(c.outstanding) == 0 {
		return c.exitCriticalSection()
	}

	return nil
}

/*******************************************************************************
Critical section
*******************************************************************************/

func (c *Core) enterCriticalSection() error {
	c.setState(state.InCriticalSection)

	c.logger.WithField("event", c.active).Debug("Entered critical section")

	if err := c.apply(c.active); err != nil {
		return err
	}

	c.outstanding = make(map[uint32]bool)
	for _, id := range c.peers.Others(c.id) {
		c.outstanding[id] = true
	}

	if len(c.outstanding) == 0 {
		return c.exitCriticalSection()
	}

	return c.sender.Broadcast(&net.AppMessage{
		Type:      net.Propagate,
		SenderID:  c.id,
		Timestamp: c.clock.Increment(),
		EventID:   c.active.ID,
		Event:     c.active,
	})
}

func (c *Core) exitCriticalSection() error {
	c.logger.WithFields(logrus.Fields{
		"event":    c.active,
		"deferred": len(c.deferred),
	}).Debug("Leaving critical section")

	c.active = nil
	c.setState(state.Idle)

	deferred := c.deferred
	c.deferred = nil

	var firstErr error
	for _, d := range deferred {
		if err := c.reply(d.from, d.eventID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := c.startNextRound(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

/*******************************************************************************
Helpers
*******************************************************************************/

func (c *Core) reply(to uint32, eventID event.ID) error {
	return c.sender.Send(to, &net.AppMessage{
		Type:      net.Reply,
		SenderID:  c.id,
		Timestamp: c.clock.Increment(),
		EventID:   eventID,
	})
}

func (c *Core) apply(ev *event.Event) error {
	applied, err := c.store.Apply(ev)
	if err != nil {
		return fmt.Errorf("applying %s: %v", ev, err)
	}

	if !applied {
		c.logger.WithField("event", ev.ID).Debug("Event already applied")
		return nil
	}

	c.applied++

	if c.commitCallback != nil {
		if err := c.commitCallback(*ev); err != nil {
			c.logger.WithError(err).Error("Commit callback")
		}
	}

	return nil
}

func (c *Core) setState(s state.State) {
	c.state.SetState(s)

	if c.stateChangeCallback != nil {
		if err := c.stateChangeCallback(s); err != nil {
			c.logger.WithError(err).Error("State change callback")
		}
	}
}

/*******************************************************************************
Getters
*******************************************************************************/

// ID ...
func (c *Core) ID() uint32 {
	return c.id
}

// GetState returns the position of the node in the protocol.
func (c *Core) GetState() state.State {
	return c.state.GetState()
}

// Clock returns the current Lamport time.
func (c *Core) Clock() uint64 {
	return c.clock.Value()
}

// ActiveEvent returns the Event being requested or applied, if any.
func (c *Core) ActiveEvent() *event.Event {
	return c.active
}

// PendingReplies returns the sorted ids of the peers whose Reply is missing.
func (c *Core) PendingReplies() []uint32 {
	return sortedIDs(c.pending)
}

// OutstandingAcks returns the sorted ids of the peers whose PropagateAck is
// missing.
func (c *Core) OutstandingAcks() []uint32 {
	return sortedIDs(c.outstanding)
}

// DeferredCount returns the number of Requests waiting for a Reply.
func (c *Core) DeferredCount() int {
	return len(c.deferred)
}

// QueuedIntents returns the number of intents waiting for a round.
func (c *Core) QueuedIntents() int {
	return len(c.intents)
}

// Busy reports whether the node is in a round or has intents waiting.
func (c *Core) Busy() bool {
	return c.state.GetState() != state.Idle || len(c.intents) > 0
}

// Rounds returns the number of rounds started by this node.
func (c *Core) Rounds() int {
	return c.rounds
}

// AppliedCount returns the number of Events applied to the store.
func (c *Core) AppliedCount() int {
	return c.applied
}

func sortedIDs(m map[uint32]bool) []uint32 {
	res := make([]uint32, 0, len(m))
	for id := range m {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
