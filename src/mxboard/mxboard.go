package mxboard

import (
	"fmt"

	"github.com/mosaicnetworks/mxboard/src/config"
	"github.com/mosaicnetworks/mxboard/src/net"
	"github.com/mosaicnetworks/mxboard/src/node"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/mosaicnetworks/mxboard/src/proxy/dummy"
	"github.com/mosaicnetworks/mxboard/src/service"
	"github.com/mosaicnetworks/mxboard/src/store"
	"github.com/sirupsen/logrus"
)

// MXBoard is a struct containing the key objects of a board node: a
// configuration, a Channel, a Messenger, a Store, a PeerSet, a Node and a
// Service.
type MXBoard struct {
	Config    *config.Config
	Peer      *peers.Peer
	Peers     *peers.PeerSet
	Store     store.Store
	Channel   net.Channel
	Messenger *net.Messenger
	Node      *node.Node
	Service   *service.Service
	logger    *logrus.Entry
}

// NewMXBoard is a factory method to produce an MXBoard instance. Peers and
// Channel can be set before calling Init, in which case they are used instead
// of peers.json and a UDP socket.
func NewMXBoard(c *config.Config) *MXBoard {
	engine := &MXBoard{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the engine, creating every component from the Config.
func (m *MXBoard) Init() error {
	if err := m.initPeers(); err != nil {
		m.logger.WithError(err).Error("mxboard.go:Init() initPeers")
		return err
	}

	if err := m.initChannel(); err != nil {
		m.logger.WithError(err).Error("mxboard.go:Init() initChannel")
		return err
	}

	if err := m.initSelf(); err != nil {
		m.logger.WithError(err).Error("mxboard.go:Init() initSelf")
		m.Channel.Close()
		return err
	}

	if err := m.initStore(); err != nil {
		m.logger.WithError(err).Error("mxboard.go:Init() initStore")
		m.Channel.Close()
		return err
	}

	m.initMessenger()

	if err := m.initNode(); err != nil {
		m.logger.WithError(err).Error("mxboard.go:Init() initNode")
		m.Messenger.Close()
		m.Store.Close()
		return err
	}

	m.initService()

	return nil
}

// Run starts the optional service and the node's main loop. It blocks until
// the node is shut down.
func (m *MXBoard) Run() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	m.Node.Run()
}

// RunAsync starts the optional service and the node's main loop in the
// background.
func (m *MXBoard) RunAsync() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	m.Node.RunAsync()
}

// Shutdown stops the service and the node. The node closes the Messenger and
// the Store.
func (m *MXBoard) Shutdown() {
	if m.Service != nil {
		if err := m.Service.Close(); err != nil {
			m.logger.WithError(err).Debug("Closing service")
		}
	}

	if m.Node != nil {
		m.Node.Shutdown()
	}
}

func (m *MXBoard) initPeers() error {
	if m.Peers != nil {
		return nil
	}

	peerSet, err := peers.NewJSONPeerSet(m.Config.DataDir).PeerSet()
	if err != nil {
		return err
	}

	if peerSet == nil || peerSet.Len() == 0 {
		return fmt.Errorf("peers.json in %s does not define any peer", m.Config.DataDir)
	}

	m.Peers = peerSet

	return nil
}

func (m *MXBoard) initChannel() error {
	if m.Channel == nil {
		udp, err := net.NewUDPChannel(
			m.Config.BindAddr,
			m.Config.AdvertiseAddr,
			m.Config.ChannelBuffer,
			m.logger,
		)
		if err != nil {
			return err
		}

		m.Channel = udp
	}

	if m.Config.Chaotic() {
		m.logger.WithFields(logrus.Fields{
			"loss":      m.Config.Loss,
			"duplicate": m.Config.Duplicate,
			"reorder":   m.Config.Reorder,
			"delay":     m.Config.Delay,
			"jitter":    m.Config.Jitter,
		}).Warn("Simulating a degraded network")

		m.Channel = net.NewChaosChannel(m.Channel, net.ChaosConfig{
			Loss:      m.Config.Loss,
			Duplicate: m.Config.Duplicate,
			Reorder:   m.Config.Reorder,
			BaseDelay: m.Config.Delay,
			Jitter:    m.Config.Jitter,
			Seed:      m.Config.ChaosSeed,
		})
	}

	return nil
}

// initSelf finds this node in the PeerSet, by id if one is configured,
// otherwise by the address of the Channel.
func (m *MXBoard) initSelf() error {
	var (
		self *peers.Peer
		ok   bool
	)

	if m.Config.ID != 0 {
		self, ok = m.Peers.ByID[m.Config.ID]
		if !ok {
			return fmt.Errorf("no peer with id %d in the PeerSet", m.Config.ID)
		}
	} else {
		addr := m.Channel.LocalAddr()
		self, ok = m.Peers.ByNetAddr[addr]
		if !ok {
			return fmt.Errorf("no peer with address %s in the PeerSet", addr)
		}
	}

	moniker := self.Moniker
	if m.Config.Moniker != "" {
		moniker = m.Config.Moniker
	}

	m.Peer = peers.NewPeer(self.ID, self.NetAddr, moniker)

	m.logger = m.logger.WithField("id", m.Peer.ID)

	m.logger.WithFields(logrus.Fields{
		"peers":   m.Peers.Peers,
		"moniker": moniker,
	}).Debug("PARTICIPANTS")

	return nil
}

func (m *MXBoard) initStore() error {
	if !m.Config.Store {
		m.Store = store.NewInmemStore()

		m.logger.Debug("created new in-mem store")

		return nil
	}

	m.logger.WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

	badgerStore, err := store.NewBadgerStore(m.Config.DatabaseDir, m.logger)
	if err != nil {
		return err
	}

	m.Store = badgerStore

	return nil
}

func (m *MXBoard) initMessenger() {
	m.Messenger = net.NewMessenger(
		m.Peer.ID,
		m.Peers,
		m.Channel,
		m.Config.WindowSize,
		m.Config.RetransmitTimeout,
		m.logger,
	)

	m.Messenger.Listen()
}

func (m *MXBoard) initNode() error {
	if m.Config.Proxy == nil {
		m.Config.Proxy = dummy.NewInmemDummyClient(m.logger)
	}

	m.Node = node.NewNode(
		m.Config,
		m.Peer,
		m.Peers,
		m.Store,
		m.Messenger,
		m.Config.Proxy,
	)

	if err := m.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %v", err)
	}

	return nil
}

func (m *MXBoard) initService() {
	if m.Config.NoService || m.Config.ServiceAddr == "" {
		return
	}

	m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.logger)
}
