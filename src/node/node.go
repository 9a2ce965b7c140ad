package node

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/mxboard/src/config"
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/net"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/mosaicnetworks/mxboard/src/proxy"
	"github.com/mosaicnetworks/mxboard/src/store"
	"github.com/sirupsen/logrus"
)

//Node defines a board node
type Node struct {
	conf   *config.Config
	logger *logrus.Entry

	peer  *peers.Peer
	peers *peers.PeerSet
	store store.Store

	core     *Core
	coreLock sync.Mutex

	messenger *net.Messenger
	netCh     <-chan net.Delivery

	proxy    proxy.AppProxy
	submitCh chan event.Intent

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	runWG        sync.WaitGroup
	runLock      sync.Mutex //orders runWG.Add before Shutdown's Wait

	start             time.Time
	messagesProcessed int
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config,
	peer *peers.Peer,
	peers *peers.PeerSet,
	store store.Store,
	messenger *net.Messenger,
	proxy proxy.AppProxy,
) *Node {

	logger := conf.Logger().WithFields(logrus.Fields{
		"this_id": peer.ID,
		"moniker": peer.Moniker,
	})

	node := Node{
		conf:       conf,
		logger:     logger,
		peer:       peer,
		peers:      peers,
		store:      store,
		messenger:  messenger,
		netCh:      messenger.Consumer(),
		proxy:      proxy,
		submitCh:   proxy.SubmitCh(),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}

	node.core = NewCore(peer.ID,
		peers,
		store,
		messenger,
		proxy.CommitEvent,
		proxy.OnStateChanged,
		logger)

	return &node
}

//Init intialises the node. It resumes the Lamport clock and the event counter
//from the store.
func (n *Node) Init() error {
	if _, ok := n.peers.ByID[n.peer.ID]; !ok {
		return fmt.Errorf("node %d does not belong to the PeerSet", n.peer.ID)
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if err := n.core.Bootstrap(); err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"applied_events": n.core.AppliedCount(),
		"clock":          n.core.Clock(),
	}).Debug("Init")

	return nil
}

//RunAsync calls Run as a separate thread. The loop is registered before the
//goroutine starts, so a Shutdown issued right after RunAsync waits for it.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	if !n.registerRun() {
		return
	}

	go n.run()
}

//Run invokes the main loop of the node. Messages from peers and intents from
//the application are processed one at a time. It returns immediately if the
//node is already shut down.
func (n *Node) Run() {
	if !n.registerRun() {
		return
	}

	n.run()
}

func (n *Node) registerRun() bool {
	n.runLock.Lock()
	defer n.runLock.Unlock()

	select {
	case <-n.shutdownCh:
		return false
	default:
	}

	n.runWG.Add(1)

	return true
}

func (n *Node) run() {
	defer n.runWG.Done()

	for {
		select {
		case d := <-n.netCh:
			n.processDelivery(d)
		case intent := <-n.submitCh:
			n.submit(intent)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) processDelivery(d net.Delivery) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	n.messagesProcessed++

	if err := n.core.HandleMessage(d.From, d.Message); err != nil {
		n.logger.WithError(err).WithField("msg", d.Message).Error("Processing message")
	}
}

func (n *Node) submit(intent event.Intent) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"kind": intent.Kind,
		"key":  intent.Key,
	}).Debug("Adding Intent")

	if err := n.core.Submit(intent); err != nil {
		n.logger.WithError(err).Error("Submitting intent")
	}
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.logStats()

		//Stop the main loop
		n.runLock.Lock()
		close(n.shutdownCh)
		n.runLock.Unlock()

		n.runWG.Wait()

		if err := n.proxy.OnStateChanged(state.Shutdown); err != nil {
			n.logger.WithError(err).Error("State change callback")
		}

		//messenger and store should only be closed once the main loop is
		//finished
		if err := n.messenger.Close(); err != nil {
			n.logger.WithError(err).Debug("Closing messenger")
		}

		if err := n.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	})
}

//GetState returns the position of the node in the protocol, or Shutdown.
func (n *Node) GetState() state.State {
	select {
	case <-n.shutdownCh:
		return state.Shutdown
	default:
		return n.core.GetState()
	}
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	timeElapsed := time.Since(n.start)

	applied := n.core.AppliedCount()

	var eventsPerSecond float64
	if timeElapsed.Seconds() > 0 {
		eventsPerSecond = float64(applied) / timeElapsed.Seconds()
	}

	entries, _ := n.store.Entries()

	s := map[string]string{
		"id":                 fmt.Sprint(n.peer.ID),
		"moniker":            n.peer.Moniker,
		"state":              n.GetState().String(),
		"clock":              strconv.FormatUint(n.core.Clock(), 10),
		"rounds":             strconv.Itoa(n.core.Rounds()),
		"applied_events":     strconv.Itoa(applied),
		"entries":            strconv.Itoa(len(entries)),
		"pending_replies":    strconv.Itoa(len(n.core.PendingReplies())),
		"outstanding_acks":   strconv.Itoa(len(n.core.OutstandingAcks())),
		"deferred_requests":  strconv.Itoa(n.core.DeferredCount()),
		"queued_intents":     strconv.Itoa(n.core.QueuedIntents()),
		"messages_processed": strconv.Itoa(n.messagesProcessed),
		"unacked_messages":   strconv.Itoa(n.messenger.Unacked()),
		"num_peers":          strconv.Itoa(n.peers.Len()),
		"events_per_second":  strconv.FormatFloat(eventsPerSecond, 'f', 2, 64),
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	fields := logrus.Fields{}
	for k, v := range stats {
		fields[k] = v
	}

	n.logger.WithFields(fields).Debug("Stats")
}

//GetEntries returns the entries of the board in creation order
func (n *Node) GetEntries() ([]*store.Entry, error) {
	return n.store.Entries()
}

//GetEntry returns a single entry
func (n *Node) GetEntry(key string) (*store.Entry, error) {
	return n.store.GetEntry(key)
}

//GetAppliedEvents returns the events applied to the board, in order
func (n *Node) GetAppliedEvents() ([]*event.Event, error) {
	return n.store.AppliedEvents()
}

//GetConnectionStats returns the counters of each peer connection
func (n *Node) GetConnectionStats() map[uint32]net.ConnectionStats {
	return n.messenger.Stats()
}

//ID returns the node's ID
func (n *Node) ID() uint32 {
	return n.peer.ID
}

//GetPeers returns the peers
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Peers
}
