// Package service exposes a read-only HTTP API over a running node: /stats,
// /entries, /entry/{key}, /peers and /connections.
package service
