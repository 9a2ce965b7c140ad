// Package mxboard wires together the components of a board node from a
// Config: the PeerSet, the Channel (UDP by default, optionally degraded by a
// ChaosChannel), the Messenger, the Store, the Node and the HTTP Service.
//
//	conf := config.NewDefaultConfig()
//	conf.SetDataDir("/path/to/datadir") // containing peers.json
//	engine := mxboard.NewMXBoard(conf)
//	if err := engine.Init(); err != nil {
//		...
//	}
//	engine.Run()
package mxboard
