package net

import (
	"errors"
)

var (
	// ErrChannelShutdown is returned when operations on a channel are invoked
	// after it's been terminated.
	ErrChannelShutdown = errors.New("channel shutdown")

	// ErrWindowFull is returned by Connection.TrySend when the outbound window
	// has no room for another message.
	ErrWindowFull = errors.New("outbound window full")

	// ErrUnknownPeer is returned when a message is addressed to a peer that is
	// not part of the PeerSet.
	ErrUnknownPeer = errors.New("unknown peer")
)

// Channel is an unreliable datagram channel between nodes. It may drop,
// duplicate or reorder datagrams, and it never blocks the sender. Reliability
// is provided on top of it by Connection.
type Channel interface {
	// Send transmits a datagram to the target address. A nil error does not
	// mean the datagram will be delivered.
	Send(target string, data []byte) error

	// Consumer returns a channel that can be used to consume inbound
	// datagrams.
	Consumer() <-chan []byte

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// Close permanently closes the channel.
	Close() error
}
