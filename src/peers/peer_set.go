package peers

import (
	"bytes"
	"encoding/json"
	"sort"
)

//PeerSet is a set of Peers forming a board cluster
type PeerSet struct {
	Peers     []*Peer          `json:"peers"`
	ByID      map[uint32]*Peer `json:"-"`
	ByNetAddr map[string]*Peer `json:"-"`
}

/* Constructors */

//NewPeerSet creates a new PeerSet from a list of Peers. Peers are kept sorted
//by ID.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID:      make(map[uint32]*Peer),
		ByNetAddr: make(map[string]*Peer),
	}

	sorted := make([]*Peer, 0, len(peers))
	for _, peer := range peers {
		if _, ok := peerSet.ByID[peer.ID]; ok {
			continue
		}
		peerSet.ByID[peer.ID] = peer
		peerSet.ByNetAddr[peer.NetAddr] = peer
		sorted = append(sorted, peer)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	peerSet.Peers = sorted

	return peerSet
}

//NewPeerSetFromPeerSliceBytes creates a new PeerSet from a peerSlice in Bytes format
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	//Decode Peer slice
	peers := []*Peer{}

	b := bytes.NewBuffer(peerSliceBytes)
	dec := json.NewDecoder(b) //will read from b

	err := dec.Decode(&peers)
	if err != nil {
		return nil, err
	}
	//create new PeerSet
	return NewPeerSet(peers), nil
}

//WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := peerSet.Peers

	//don't add it if it already exists
	if _, ok := peerSet.ByID[peer.ID]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

//WithRemovedPeer returns a new PeerSet with a list of peers excluding the
//provided one
func (peerSet *PeerSet) WithRemovedPeer(id uint32) *PeerSet {
	_, others := ExcludePeer(peerSet.Peers, id)
	return NewPeerSet(others)
}

/* ToSlice Methods */

//IDs returns the PeerSet's slice of IDs, in ascending order
func (peerSet *PeerSet) IDs() []uint32 {
	res := []uint32{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}

	return res
}

//Others returns the IDs of all the peers except the given one
func (peerSet *PeerSet) Others(id uint32) []uint32 {
	res := []uint32{}

	for _, peer := range peerSet.Peers {
		if peer.ID != id {
			res = append(res, peer.ID)
		}
	}

	return res
}

/* Utilities */

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByID)
}

//Marshal marshals the peerset
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
