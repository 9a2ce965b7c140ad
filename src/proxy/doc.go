// Package proxy defines and implements AppProxy: the interface between a board
// node and an application.
//
// The application submits Intents (create, update or delete an entry) and is
// notified of every Event applied to the board, in the order the cluster agreed
// on, as well as of every change in the node's mutual-exclusion state.
//
// InmemProxy uses native callback handlers to integrate the node as a regular
// Go dependency.
package proxy
