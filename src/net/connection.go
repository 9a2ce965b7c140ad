package net

import (
	"sync"
	"time"

	rb "github.com/glycerine/rbtree"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultWindowSize is the number of unacknowledged messages a Connection
	// allows in flight.
	DefaultWindowSize = 10

	// DefaultRetransmitTimeout is the interval after which unacknowledged
	// messages are sent again.
	DefaultRetransmitTimeout = 500 * time.Millisecond
)

type outboundEntry struct {
	seq      uint64
	payload  []byte
	deadline time.Time
}

// newOutboundWindow returns a tree of outboundEntries ordered by seq.
func newOutboundWindow() *rb.Tree {
	return rb.NewTree(func(a, b rb.Item) int {
		av := a.(*outboundEntry).seq
		bv := b.(*outboundEntry).seq
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	})
}

// ConnectionStats are counters describing the activity of a Connection.
type ConnectionStats struct {
	Sent          uint64 `json:"sent"`
	Retransmitted uint64 `json:"retransmitted"`
	Delivered     uint64 `json:"delivered"`
	Duplicates    uint64 `json:"duplicates"`
	OutOfWindow   uint64 `json:"out_of_window"`
	Unacked       int    `json:"unacked"`
	Backlog       int    `json:"backlog"`
}

// Connection provides reliable in-order delivery of payloads to a single peer
// over an unreliable Channel. It uses a sliding window of sequence numbers with
// cumulative acknowledgements and a retransmission timer.
//
// Receive must be called by a single goroutine for the payloads it returns to
// be consumed in order.
type Connection struct {
	sync.Mutex

	self    uint32
	peer    uint32
	target  string
	channel Channel

	windowSize uint64
	timeout    time.Duration

	nextSeq  uint64 //next outbound sequence number
	outbound *rb.Tree //*outboundEntry by seq
	backlog  [][]byte

	expected uint64 //next inbound sequence number to deliver
	inbound  map[uint64][]byte

	stats ConnectionStats
	timer *RetransmitTimer

	logger *logrus.Entry
}

// NewConnection creates a Connection from node self to node peer, reachable at
// target through channel.
func NewConnection(self uint32,
	peer uint32,
	target string,
	channel Channel,
	windowSize int,
	timeout time.Duration,
	logger *logrus.Entry) *Connection {

	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if timeout <= 0 {
		timeout = DefaultRetransmitTimeout
	}
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	c := &Connection{
		self:       self,
		peer:       peer,
		target:     target,
		channel:    channel,
		windowSize: uint64(windowSize),
		timeout:    timeout,
		nextSeq:    1,
		outbound:   newOutboundWindow(),
		expected:   1,
		inbound:    make(map[uint64][]byte),
		logger:     logger.WithField("peer", peer),
	}

	c.timer = NewRetransmitTimer(time.After, timeout, c.onTimeout, c.busy)

	return c
}

// Start launches the retransmission timer.
func (c *Connection) Start() {
	go c.timer.Run()
}

// Close stops the retransmission timer. Unacknowledged messages are abandoned.
func (c *Connection) Close() {
	c.timer.Shutdown()
}

// Peer returns the id of the remote node.
func (c *Connection) Peer() uint32 {
	return c.peer
}

// Send queues payload for reliable delivery. If the window is full the payload
// waits in a backlog until acknowledgements free some room.
func (c *Connection) Send(payload []byte) error {
	c.Lock()

	if len(c.backlog) > 0 || c.windowFull() {
		c.backlog = append(c.backlog, payload)
		c.Unlock()
		return nil
	}

	frame := c.push(payload)
	c.Unlock()

	c.transmit(frame)
	c.timer.Arm()

	return nil
}

// TrySend is like Send but returns ErrWindowFull instead of waiting when
// there is no room in the window.
func (c *Connection) TrySend(payload []byte) error {
	c.Lock()

	if len(c.backlog) > 0 || c.windowFull() {
		c.Unlock()
		return ErrWindowFull
	}

	frame := c.push(payload)
	c.Unlock()

	c.transmit(frame)
	c.timer.Arm()

	return nil
}

// Receive processes a Frame coming from the peer. It returns the payloads that
// became deliverable, in order.
func (c *Connection) Receive(frame *Frame) [][]byte {
	var (
		toSend    []*Frame
		delivered [][]byte
		needAck   bool
	)

	c.Lock()

	if frame.Ack > 0 {
		toSend = c.handleAck(frame.Ack)
	}

	if !frame.IsAckOnly() {
		delivered, needAck = c.handlePayload(frame.Seq, frame.Payload)
	}

	ack := c.expected - 1
	busy := c.outbound.Len() > 0
	for _, f := range toSend {
		f.Ack = ack
	}

	c.Unlock()

	for _, f := range toSend {
		c.transmit(f)
	}

	if needAck && len(toSend) == 0 {
		c.transmit(&Frame{From: c.self, Ack: ack})
	}

	if len(toSend) > 0 {
		c.timer.Arm()
	} else if !busy {
		c.timer.Stop()
	}

	return delivered
}

// Stats returns a snapshot of the Connection counters.
func (c *Connection) Stats() ConnectionStats {
	c.Lock()
	defer c.Unlock()

	s := c.stats
	s.Unacked = c.outbound.Len()
	s.Backlog = len(c.backlog)

	return s
}

// Unacked returns the number of messages waiting for an acknowledgement,
// including the backlog.
func (c *Connection) Unacked() int {
	c.Lock()
	defer c.Unlock()
	return c.outbound.Len() + len(c.backlog)
}

//must be called with the lock held
func (c *Connection) windowFull() bool {
	return uint64(c.outbound.Len()) >= c.windowSize
}

//must be called with the lock held
func (c *Connection) push(payload []byte) *Frame {
	seq := c.nextSeq
	c.nextSeq++

	c.outbound.Insert(&outboundEntry{
		seq:      seq,
		payload:  payload,
		deadline: time.Now().Add(c.timeout),
	})
	c.stats.Sent++

	return &Frame{
		From:    c.self,
		Seq:     seq,
		Ack:     c.expected - 1,
		Payload: payload,
	}
}

//must be called with the lock held
func (c *Connection) handleAck(ack uint64) []*Frame {
	if ack >= c.nextSeq {
		c.logger.WithFields(logrus.Fields{
			"ack":       ack,
			"last_sent": c.nextSeq - 1,
		}).Error("Ack beyond last sent message")
		return nil
	}

	for it := c.outbound.Min(); !it.Limit(); {
		if it.Item().(*outboundEntry).seq > ack {
			break
		}
		delit := it
		it = it.Next()
		c.outbound.DeleteWithIterator(delit)
	}

	var frames []*Frame
	for len(c.backlog) > 0 && !c.windowFull() {
		payload := c.backlog[0]
		c.backlog[0] = nil
		c.backlog = c.backlog[1:]
		frames = append(frames, c.push(payload))
	}

	return frames
}

//must be called with the lock held
func (c *Connection) handlePayload(seq uint64, payload []byte) ([][]byte, bool) {
	if seq < c.expected {
		c.stats.Duplicates++
		return nil, true
	}

	if seq >= c.expected+c.windowSize {
		c.stats.OutOfWindow++
		c.logger.WithFields(logrus.Fields{
			"seq":      seq,
			"expected": c.expected,
		}).Debug("Dropping message beyond inbound window")
		return nil, false
	}

	if _, ok := c.inbound[seq]; ok {
		c.stats.Duplicates++
	} else {
		c.inbound[seq] = payload
	}

	var delivered [][]byte
	for {
		p, ok := c.inbound[c.expected]
		if !ok {
			break
		}
		delete(c.inbound, c.expected)
		delivered = append(delivered, p)
		c.expected++
	}
	c.stats.Delivered += uint64(len(delivered))

	return delivered, true
}

//retransmit resends every unacknowledged message as soon as one of them is
//overdue, and rearms their deadlines. It returns the number of messages resent
//and the number still unacked.
func (c *Connection) retransmit(now time.Time) (int, int) {
	c.Lock()

	overdue := false
	for it := c.outbound.Min(); !it.Limit(); it = it.Next() {
		if !it.Item().(*outboundEntry).deadline.After(now) {
			overdue = true
			break
		}
	}

	var frames []*Frame
	if overdue {
		for it := c.outbound.Min(); !it.Limit(); it = it.Next() {
			e := it.Item().(*outboundEntry)
			e.deadline = now.Add(c.timeout)
			frames = append(frames, &Frame{
				From:    c.self,
				Seq:     e.seq,
				Ack:     c.expected - 1,
				Payload: e.payload,
			})
		}
	}
	c.stats.Retransmitted += uint64(len(frames))
	remaining := c.outbound.Len()

	c.Unlock()

	if len(frames) > 0 {
		c.logger.WithField("count", len(frames)).Debug("Retransmitting")
	}

	for _, f := range frames {
		c.transmit(f)
	}

	return len(frames), remaining
}

func (c *Connection) onTimeout() bool {
	_, remaining := c.retransmit(time.Now())
	return remaining > 0
}

func (c *Connection) busy() bool {
	c.Lock()
	defer c.Unlock()
	return c.outbound.Len() > 0
}

func (c *Connection) transmit(f *Frame) {
	data, err := f.Marshal()
	if err != nil {
		c.logger.WithError(err).Error("Encoding frame")
		return
	}

	if err := c.channel.Send(c.target, data); err != nil {
		c.logger.WithError(err).Debug("Sending frame")
	}
}
