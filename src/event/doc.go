// Package event defines the transactions that modify the board.
//
// An Event is a single Create, Update or Delete of a keyed entry. It is created
// once by the node where the intent originated, carries a Lamport timestamp,
// and is identified by the pair (origin node, per-node counter). Events are
// totally ordered by (Timestamp, origin node), which is the order used to
// resolve concurrent requests for the critical section.
package event
