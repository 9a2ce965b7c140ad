// Package config defines the configuration for a board node.
//
// Regardless of how a node is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. On top of these
// configuration options, a node relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional configuration
// files:
//
//  peers.json // a JSON file containing the list of peers.
//  mxboard.toml // (optional) configuration options, overridden by command line flags.
package config
