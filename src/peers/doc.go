// Package peers defines the concept of a board peer and implements functions
// to manage collections of peers.
//
// Every peer carries a numeric ID which totally orders the members of a
// cluster. When two nodes request the critical section with the same Lamport
// timestamp, the one with the lower ID wins. IDs may be given explicitly in
// peers.json or derived from the peer's network address.
package peers
