package peers

import (
	"fmt"

	"github.com/mosaicnetworks/mxboard/src/common"
)

// Peer is a node of the board cluster. The ID totally orders peers and breaks
// ties between concurrent requests, so it must be unique within a PeerSet.
type Peer struct {
	ID      uint32 `json:"id"`
	NetAddr string `json:"net_addr"`
	Moniker string `json:"moniker"`
}

// NewPeer creates a Peer with an explicit ID.
func NewPeer(id uint32, netAddr, moniker string) *Peer {
	return &Peer{
		ID:      id,
		NetAddr: netAddr,
		Moniker: moniker,
	}
}

// NewPeerFromAddr creates a Peer whose ID is derived from its network address.
func NewPeerFromAddr(netAddr, moniker string) *Peer {
	return NewPeer(common.Hash32([]byte(netAddr)), netAddr, moniker)
}

// String ...
func (p *Peer) String() string {
	if p.Moniker != "" {
		return fmt.Sprintf("%s(%d@%s)", p.Moniker, p.ID, p.NetAddr)
	}
	return fmt.Sprintf("%d@%s", p.ID, p.NetAddr)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, id uint32) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID != id {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
