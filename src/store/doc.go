// Package store holds the board maintained by a node.
//
// The board is a set of entries, each identified by a key and numbered in the
// order it was created. Entries are only modified by applying Events, and each
// Event is applied at most once. InmemStore keeps everything in memory;
// BadgerStore additionally persists events and entries to a Badger database and
// replays the events when it is reopened.
package store
