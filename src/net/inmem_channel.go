package net

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// DefaultInmemBuffer is the capacity of an InmemChannel's inbound queue.
const DefaultInmemBuffer = 1024

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemChannel implements the Channel interface, to allow nodes to be tested
// in-memory without going over a network. Datagrams sent to a full inbound
// queue are dropped, like a congested network would.
type InmemChannel struct {
	sync.RWMutex
	consumerCh chan []byte
	localAddr  string
	peers      map[string]*InmemChannel
	shutdown   bool
	dropped    uint64
}

// NewInmemChannel is used to initialize a new channel and generates a random
// local address if none is specified.
func NewInmemChannel(addr string, buffer int) (string, *InmemChannel) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	if buffer <= 0 {
		buffer = DefaultInmemBuffer
	}
	ch := &InmemChannel{
		consumerCh: make(chan []byte, buffer),
		localAddr:  addr,
		peers:      make(map[string]*InmemChannel),
	}
	return addr, ch
}

// Consumer implements the Channel interface.
func (i *InmemChannel) Consumer() <-chan []byte {
	return i.consumerCh
}

// LocalAddr implements the Channel interface.
func (i *InmemChannel) LocalAddr() string {
	return i.localAddr
}

// Send implements the Channel interface. Sending to an address that is not
// connected is silently dropped.
func (i *InmemChannel) Send(target string, data []byte) error {
	i.RLock()
	if i.shutdown {
		i.RUnlock()
		return ErrChannelShutdown
	}
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		return nil
	}

	peer.deliver(data)

	return nil
}

func (i *InmemChannel) deliver(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	i.Lock()
	defer i.Unlock()

	if i.shutdown {
		return
	}

	select {
	case i.consumerCh <- buf:
	default:
		i.dropped++
	}
}

// Dropped returns the number of datagrams dropped because the inbound queue
// was full.
func (i *InmemChannel) Dropped() uint64 {
	i.RLock()
	defer i.RUnlock()
	return i.dropped
}

// Connect is used to connect this channel to another channel for a given
// address. This allows for local routing.
func (i *InmemChannel) Connect(addr string, c *InmemChannel) {
	i.Lock()
	defer i.Unlock()
	i.peers[addr] = c
}

// Disconnect is used to remove the ability to route to a given address.
func (i *InmemChannel) Disconnect(addr string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, addr)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemChannel) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemChannel)
}

// Close is used to permanently disable the channel.
func (i *InmemChannel) Close() error {
	i.Lock()
	defer i.Unlock()
	if i.shutdown {
		return nil
	}
	i.shutdown = true
	i.peers = make(map[string]*InmemChannel)
	return nil
}

// ConnectInmemChannels connects every channel to every other one, including
// itself, so that they form a fully meshed in-memory network.
func ConnectInmemChannels(channels []*InmemChannel) {
	for _, a := range channels {
		for _, b := range channels {
			a.Connect(b.LocalAddr(), b)
		}
	}
}
