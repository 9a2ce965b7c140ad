package peers

import (
	"reflect"
	"testing"
)

func TestPeerSetSortedAndDeduplicated(t *testing.T) {
	ps := NewPeerSet([]*Peer{
		NewPeer(3, "c", ""),
		NewPeer(1, "a", ""),
		NewPeer(2, "b", ""),
		NewPeer(1, "a2", ""),
	})

	if ps.Len() != 3 {
		t.Fatalf("peer-set should contain 3 peers, not %d", ps.Len())
	}
	if !reflect.DeepEqual(ps.IDs(), []uint32{1, 2, 3}) {
		t.Fatalf("IDs should be sorted, got %v", ps.IDs())
	}
	if !reflect.DeepEqual(ps.Others(2), []uint32{1, 3}) {
		t.Fatalf("Others(2) should be [1 3], got %v", ps.Others(2))
	}
	if ps.ByNetAddr["b"].ID != 2 {
		t.Fatalf("ByNetAddr should index peer 2 under b")
	}
}

func TestPeerSetWithNewAndRemovedPeer(t *testing.T) {
	ps := NewPeerSet([]*Peer{NewPeer(1, "a", ""), NewPeer(2, "b", "")})

	grown := ps.WithNewPeer(NewPeer(4, "d", ""))
	if !reflect.DeepEqual(grown.IDs(), []uint32{1, 2, 4}) {
		t.Fatalf("grown peer-set should be [1 2 4], got %v", grown.IDs())
	}

	shrunk := grown.WithRemovedPeer(1)
	if !reflect.DeepEqual(shrunk.IDs(), []uint32{2, 4}) {
		t.Fatalf("shrunk peer-set should be [2 4], got %v", shrunk.IDs())
	}

	if ps.Len() != 2 {
		t.Fatalf("original peer-set should not be modified")
	}
}

func TestPeerSetMarshal(t *testing.T) {
	ps := NewPeerSet([]*Peer{NewPeer(1, "a", "alice"), NewPeer(2, "b", "bob")})

	raw, err := ps.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	res, err := NewPeerSetFromPeerSliceBytes(raw)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(res.Peers, ps.Peers) {
		t.Fatalf("peers should be %v, not %v", ps.Peers, res.Peers)
	}
}
