// Package net implements the reliable messaging layer used by board nodes.
//
// At the bottom sits the Channel interface, an unreliable datagram channel
// which may lose, duplicate or reorder what is sent through it. There are three
// implementations:
//
// - Inmem: in-memory channel used for testing and single-process clusters
//
// - UDP: plain UDP datagrams
//
// - Chaos: a wrapper around another Channel which injects loss, duplication,
// latency and reordering, to exercise the layers above it
//
// Connection
//
// A Connection turns a Channel into a reliable, in-order stream of payloads to
// a single peer. Outbound payloads are numbered from 1 and kept in a sliding
// window until the peer acknowledges them. Acknowledgements are cumulative and
// are piggybacked on data frames when possible. A RetransmitTimer fires at a
// fixed interval; as soon as one payload is overdue, every unacknowledged
// payload is sent again. When the window is full, Send queues payloads in a
// backlog while TrySend returns ErrWindowFull.
//
// Messenger
//
// The Messenger owns one Connection per peer of the PeerSet and exchanges
// AppMessages (Request, Reply, Propagate, PropagateAck) with them. Delivered
// messages are published on the Consumer channel, in the order each peer sent
// them.
package net
