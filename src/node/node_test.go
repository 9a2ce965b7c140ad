package node

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/config"
	"github.com/mosaicnetworks/mxboard/src/net"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/mosaicnetworks/mxboard/src/proxy/dummy"
	"github.com/mosaicnetworks/mxboard/src/store"
)

//dropFirstPropagate loses the first datagram carrying a Propagate message.
type dropFirstPropagate struct {
	net.Channel
	sync.Mutex
	dropped bool
}

func (d *dropFirstPropagate) Send(target string, data []byte) error {
	d.Lock()
	if !d.dropped {
		f := new(net.Frame)
		if err := f.Unmarshal(data); err == nil && !f.IsAckOnly() {
			m := new(net.AppMessage)
			if err := m.Unmarshal(f.Payload); err == nil && m.Type == net.Propagate {
				d.dropped = true
				d.Unlock()
				return nil
			}
		}
	}
	d.Unlock()
	return d.Channel.Send(target, data)
}

type testNode struct {
	*Node
	client *dummy.InmemDummyClient
}

func initNodes(t *testing.T,
	n int,
	windowSize int,
	wrap func(i int, ch net.Channel) net.Channel) []*testNode {

	inmems := []*net.InmemChannel{}
	pirs := []*peers.Peer{}
	for i := 1; i <= n; i++ {
		addr, ch := net.NewInmemChannel("", 0)
		inmems = append(inmems, ch)
		pirs = append(pirs, peers.NewPeer(uint32(i), addr, fmt.Sprintf("node%d", i)))
	}
	net.ConnectInmemChannels(inmems)

	peerSet := peers.NewPeerSet(pirs)

	nodes := []*testNode{}
	for i, p := range peerSet.Peers {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.WindowSize = windowSize
		conf.RetransmitTimeout = 20 * time.Millisecond

		var ch net.Channel = inmems[i]
		if wrap != nil {
			ch = wrap(i, ch)
		}

		messenger := net.NewMessenger(p.ID, peerSet, ch, conf.WindowSize, conf.RetransmitTimeout, conf.Logger())
		messenger.Listen()

		client := dummy.NewInmemDummyClient(conf.Logger())

		node := NewNode(conf, p, peerSet, store.NewInmemStore(), messenger, client)
		if err := node.Init(); err != nil {
			t.Fatal(err)
		}
		node.RunAsync()

		nodes = append(nodes, &testNode{Node: node, client: client})
	}

	return nodes
}

func shutdownNodes(nodes []*testNode) {
	for _, n := range nodes {
		n.Shutdown()
	}
}

func waitApplied(t *testing.T, nodes []*testNode, count int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		done := true
		for _, n := range nodes {
			if len(n.client.GetCommittedEvents()) < count || n.GetState() != state.Idle {
				done = false
				break
			}
		}
		if done {
			return
		}
		if time.Now().After(deadline) {
			for _, n := range nodes {
				t.Logf("node %d: %v", n.ID(), n.GetStats())
			}
			t.Fatalf("timeout waiting for %d events", count)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func checkSameBoard(t *testing.T, nodes []*testNode) {
	ref := nodes[0].client.GetCommittedEvents()
	refEntries, _ := nodes[0].GetEntries()
	for _, n := range nodes[1:] {
		if evs := n.client.GetCommittedEvents(); !reflect.DeepEqual(evs, ref) {
			t.Fatalf("node %d committed %v, node 1 committed %v", n.ID(), evs, ref)
		}
		entries, _ := n.GetEntries()
		if !reflect.DeepEqual(entries, refEntries) {
			t.Fatalf("node %d board differs from node 1", n.ID())
		}
	}
}

func TestNodeThreeNodesCreate(t *testing.T) {
	nodes := initNodes(t, 3, net.DefaultWindowSize, nil)
	defer shutdownNodes(nodes)

	nodes[0].client.SubmitCreate("title", "hello")

	waitApplied(t, nodes, 1, 5*time.Second)
	checkSameBoard(t, nodes)

	for _, n := range nodes {
		entry, err := n.GetEntry("title")
		if err != nil {
			t.Fatalf("node %d: %v", n.ID(), err)
		}
		if entry.Value != "hello" {
			t.Fatalf("node %d: value should be hello, not %q", n.ID(), entry.Value)
		}
	}
}

func TestNodeConcurrentSubmissions(t *testing.T) {
	nodes := initNodes(t, 3, net.DefaultWindowSize, nil)
	defer shutdownNodes(nodes)

	const perNode = 5

	var wg sync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go func(n *testNode) {
			defer wg.Done()
			for i := 0; i < perNode; i++ {
				n.client.SubmitCreate(fmt.Sprintf("n%d-%d", n.ID(), i), "v")
			}
		}(n)
	}
	wg.Wait()

	waitApplied(t, nodes, 3*perNode, 10*time.Second)
	checkSameBoard(t, nodes)

	entries, _ := nodes[0].GetEntries()
	if len(entries) != 3*perNode {
		t.Fatalf("board should contain %d entries, not %d", 3*perNode, len(entries))
	}
}

func TestNodeDroppedPropagate(t *testing.T) {
	nodes := initNodes(t, 3, net.DefaultWindowSize, func(i int, ch net.Channel) net.Channel {
		if i == 0 {
			return &dropFirstPropagate{Channel: ch}
		}
		return ch
	})
	defer shutdownNodes(nodes)

	nodes[0].client.SubmitCreate("k", "v")

	waitApplied(t, nodes, 1, 5*time.Second)
	checkSameBoard(t, nodes)

	for _, n := range nodes {
		if c := len(n.client.GetCommittedEvents()); c != 1 {
			t.Fatalf("node %d should apply the event exactly once, not %d times", n.ID(), c)
		}
	}

	var retransmitted uint64
	for _, s := range nodes[0].GetConnectionStats() {
		retransmitted += s.Retransmitted
	}
	if retransmitted == 0 {
		t.Fatalf("the dropped Propagate should have been retransmitted")
	}
}

func TestNodeOverChaos(t *testing.T) {
	nodes := initNodes(t, 3, 2, func(i int, ch net.Channel) net.Channel {
		return net.NewChaosChannel(ch, net.ChaosConfig{
			Loss:      0.2,
			Duplicate: 0.1,
			Reorder:   0.2,
			BaseDelay: time.Millisecond,
			Jitter:    time.Millisecond,
			Seed:      int64(i + 1),
		})
	})
	defer shutdownNodes(nodes)

	go func() {
		for i := 0; i < 4; i++ {
			nodes[i%3].client.SubmitCreate(fmt.Sprintf("k%d", i), "v")
		}
		nodes[1].client.SubmitUpdate("k0", "w")
		nodes[2].client.SubmitDelete("k1")
	}()

	waitApplied(t, nodes, 6, 20*time.Second)
	checkSameBoard(t, nodes)

	entry, err := nodes[0].GetEntry("k0")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Value != "w" {
		t.Fatalf("k0 should be updated to w, not %q", entry.Value)
	}
	if _, err := nodes[0].GetEntry("k1"); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("k1 should be deleted, got %v", err)
	}
}

func TestNodeInitNotInPeerSet(t *testing.T) {
	_, ch := net.NewInmemChannel("", 0)
	peerSet := peers.NewPeerSet([]*peers.Peer{peers.NewPeer(1, "a", "")})
	outsider := peers.NewPeer(2, ch.LocalAddr(), "")

	conf := config.NewTestConfig(t, common.TestLogLevel)
	messenger := net.NewMessenger(2, peerSet, ch, 0, 0, conf.Logger())

	node := NewNode(conf, outsider, peerSet, store.NewInmemStore(), messenger, dummy.NewInmemDummyClient(conf.Logger()))
	if err := node.Init(); err == nil {
		t.Fatalf("Init should fail for a node outside the PeerSet")
	}
	node.Shutdown()
}

func TestNodeStatsAndShutdown(t *testing.T) {
	nodes := initNodes(t, 1, net.DefaultWindowSize, nil)

	nodes[0].client.SubmitCreate("solo", "1")
	waitApplied(t, nodes, 1, time.Second)

	stats := nodes[0].GetStats()
	if stats["applied_events"] != "1" || stats["entries"] != "1" || stats["state"] != "Idle" {
		t.Fatalf("unexpected stats %v", stats)
	}

	nodes[0].Shutdown()
	nodes[0].Shutdown()

	if s := nodes[0].GetState(); s != state.Shutdown {
		t.Fatalf("state should be Shutdown, not %s", s)
	}
	if s := nodes[0].client.GetState(); s != state.Shutdown {
		t.Fatalf("application should be notified of the shutdown, got %s", s)
	}
}

func TestNodeRunAsyncThenShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		nodes := initNodes(t, 2, 2, nil)
		shutdownNodes(nodes)

		for _, n := range nodes {
			if s := n.GetState(); s != state.Shutdown {
				t.Fatalf("iteration %d: node %d should be Shutdown, not %s", i, n.ID(), s)
			}
		}
	}
}

func TestNodeRunAfterShutdown(t *testing.T) {
	nodes := initNodes(t, 1, net.DefaultWindowSize, nil)
	nodes[0].Shutdown()

	done := make(chan struct{})
	go func() {
		nodes[0].Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately on a node that is shut down")
	}

	nodes[0].RunAsync()
	nodes[0].Shutdown()
}
