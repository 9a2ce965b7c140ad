package net

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glycerine/idem"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/sirupsen/logrus"
)

// Messenger exchanges AppMessages with the other nodes of a PeerSet. It owns
// one Connection per peer, created the first time a message is sent to or
// received from that peer, and forwards the messages delivered by each
// Connection, in order, to a single consumer channel.
type Messenger struct {
	id      uint32
	peers   *peers.PeerSet
	channel Channel

	windowSize int
	timeout    time.Duration

	connLock    sync.Mutex
	connections map[uint32]*Connection

	consumerCh chan Delivery
	halt       *idem.Halter
	listening  int32

	logger *logrus.Entry
}

// NewMessenger creates a Messenger for node id. Listen must be called to start
// processing inbound frames.
func NewMessenger(id uint32,
	peerSet *peers.PeerSet,
	channel Channel,
	windowSize int,
	timeout time.Duration,
	logger *logrus.Entry) *Messenger {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Messenger{
		id:          id,
		peers:       peerSet,
		channel:     channel,
		windowSize:  windowSize,
		timeout:     timeout,
		connections: make(map[uint32]*Connection),
		consumerCh:  make(chan Delivery, 400),
		halt:        idem.NewHalterNamed(fmt.Sprintf("Messenger(%d)", id)),
		logger:      logger,
	}
}

// Consumer returns the channel on which delivered AppMessages are published.
func (m *Messenger) Consumer() <-chan Delivery {
	return m.consumerCh
}

// LocalAddr returns the address of the underlying channel.
func (m *Messenger) LocalAddr() string {
	return m.channel.LocalAddr()
}

// Listen starts the read loop in a background goroutine.
func (m *Messenger) Listen() {
	if atomic.CompareAndSwapInt32(&m.listening, 0, 1) {
		go m.readLoop()
	}
}

// Send reliably sends an AppMessage to a peer.
func (m *Messenger) Send(peer uint32, msg *AppMessage) error {
	if m.halt.ReqStop.IsClosed() {
		return ErrChannelShutdown
	}

	conn, err := m.connection(peer)
	if err != nil {
		return err
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"peer": peer,
		"msg":  msg,
	}).Debug("Send")

	return conn.Send(data)
}

// Broadcast sends an AppMessage to every peer except ourselves. It returns the
// first error encountered, after attempting every peer.
func (m *Messenger) Broadcast(msg *AppMessage) error {
	var firstErr error
	for _, id := range m.peers.Others(m.id) {
		if err := m.Send(id, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close stops the read loop, the retransmission timers, and closes the
// channel.
func (m *Messenger) Close() error {
	if m.halt.ReqStop.IsClosed() {
		return nil
	}
	m.halt.ReqStop.Close()

	err := m.channel.Close()

	if atomic.LoadInt32(&m.listening) == 1 {
		<-m.halt.Done.Chan
	}

	m.connLock.Lock()
	for _, c := range m.connections {
		c.Close()
	}
	m.connLock.Unlock()

	return err
}

// Stats returns the counters of every Connection, by peer id.
func (m *Messenger) Stats() map[uint32]ConnectionStats {
	m.connLock.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.connLock.Unlock()

	res := make(map[uint32]ConnectionStats, len(conns))
	for _, c := range conns {
		res[c.Peer()] = c.Stats()
	}
	return res
}

// Unacked returns the total number of outbound messages that have not been
// acknowledged yet.
func (m *Messenger) Unacked() int {
	m.connLock.Lock()
	defer m.connLock.Unlock()

	res := 0
	for _, c := range m.connections {
		res += c.Unacked()
	}
	return res
}

func (m *Messenger) connection(peer uint32) (*Connection, error) {
	m.connLock.Lock()
	defer m.connLock.Unlock()

	if c, ok := m.connections[peer]; ok {
		return c, nil
	}

	p, ok := m.peers.ByID[peer]
	if !ok || peer == m.id {
		return nil, fmt.Errorf("%v: %d", ErrUnknownPeer, peer)
	}

	c := NewConnection(m.id, peer, p.NetAddr, m.channel, m.windowSize, m.timeout, m.logger)
	c.Start()
	m.connections[peer] = c

	return c, nil
}

func (m *Messenger) readLoop() {
	defer m.halt.Done.Close()

	consumer := m.channel.Consumer()
	for {
		select {
		case data, ok := <-consumer:
			if !ok {
				return
			}
			m.handleFrame(data)
		case <-m.halt.ReqStop.Chan:
			return
		}
	}
}

func (m *Messenger) handleFrame(data []byte) {
	frame := new(Frame)
	if err := frame.Unmarshal(data); err != nil {
		m.logger.WithError(err).Error("Decoding frame")
		return
	}

	if frame.From == m.id {
		return
	}

	conn, err := m.connection(frame.From)
	if err != nil {
		m.logger.WithField("from", frame.From).Warn("Frame from unknown peer")
		return
	}

	for _, payload := range conn.Receive(frame) {
		msg := new(AppMessage)
		if err := msg.Unmarshal(payload); err != nil {
			m.logger.WithError(err).Error("Decoding AppMessage")
			continue
		}

		select {
		case m.consumerCh <- Delivery{From: frame.From, Message: msg}:
		case <-m.halt.ReqStop.Chan:
			return
		}
	}
}
