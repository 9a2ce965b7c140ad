package peers

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONPeerSet(t *testing.T) {
	// Create a test dir
	dir, err := ioutil.TempDir("", "mxboard")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	// Create the store
	store := NewJSONPeerSet(dir)

	// Try a read, should get nothing
	peerSet, err := store.PeerSet()
	if err == nil {
		t.Fatalf("store.PeerSet() should generate an error")
	}
	if peerSet != nil {
		t.Fatalf("peerSet: %v", peerSet)
	}

	peers := []*Peer{}
	for i := 3; i > 0; i-- {
		peers = append(peers, NewPeer(uint32(i), fmt.Sprintf("addr%d", i), fmt.Sprintf("peer%d", i)))
	}

	newPeerSet := NewPeerSet(peers)
	newPeerSlice := newPeerSet.Peers

	if err := store.Write(newPeerSlice); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should find 3 peers
	peerSet, err = store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if peerSet.Len() != 3 {
		t.Fatalf("peers: %v", peers)
	}

	peerSlice := peerSet.Peers

	for i := 0; i < 3; i++ {
		if peerSlice[i].ID != uint32(i+1) {
			t.Fatalf("peers[%d] ID should be %d, not %d", i, i+1, peerSlice[i].ID)
		}
		if peerSlice[i].NetAddr != newPeerSlice[i].NetAddr {
			t.Fatalf("peers[%d] NetAddr should be %s, not %s", i,
				newPeerSlice[i].NetAddr, peerSlice[i].NetAddr)
		}
		if peerSlice[i].Moniker != newPeerSlice[i].Moniker {
			t.Fatalf("peers[%d] Moniker should be %s, not %s", i,
				newPeerSlice[i].Moniker, peerSlice[i].Moniker)
		}
	}
}

func TestJSONPeerSetDerivedIDs(t *testing.T) {
	dir, err := ioutil.TempDir("", "mxboard")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	raw := `[{"net_addr":"127.0.0.1:1337","moniker":"a"},{"net_addr":"127.0.0.1:1338","moniker":"b"}]`
	if err := ioutil.WriteFile(filepath.Join(dir, jsonPeerSetPath), []byte(raw), 0755); err != nil {
		t.Fatal(err)
	}

	peerSet, err := NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatal(err)
	}

	a := NewPeerFromAddr("127.0.0.1:1337", "a")
	p, ok := peerSet.ByID[a.ID]
	if !ok {
		t.Fatalf("peer a should be indexed by its derived id %d", a.ID)
	}
	if p.Moniker != "a" {
		t.Fatalf("moniker should be a, not %s", p.Moniker)
	}
}
