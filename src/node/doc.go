// Package node implements the reactive component of a board node.
//
// The Core is a Ricart-Agrawala mutual-exclusion state machine. Every change to
// the board is wrapped in an Event and applied inside the critical section:
//
//  Idle --local intent--> Requesting --all Replies--> InCriticalSection
//  InCriticalSection --all PropagateAcks--> Idle
//
// A node requesting the critical section broadcasts a Request stamped with its
// Lamport clock. Peers reply immediately unless they are in the critical
// section, or are requesting it with an earlier (timestamp, node id) pair, in
// which case the Reply is deferred until they return to Idle. Once every peer
// has replied, the node applies its Event, propagates it to all the peers, and
// waits for their acknowledgements before releasing the deferred Replies. As a
// consequence, every node applies the same Events in the same order.
//
// The Core is synchronous and does no I/O of its own; messages go out through a
// Sender. The Node wraps it in a single goroutine which consumes messages from
// the Messenger and intents from the AppProxy, one at a time.
package node
