package net

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/ugorji/go/codec"
)

// MessageType identifies the step of the mutual-exclusion protocol an
// AppMessage belongs to.
type MessageType uint8

const (
	// Request asks every peer for permission to enter the critical section.
	Request MessageType = iota
	// Reply grants permission for a Request.
	Reply
	// Propagate carries an Event applied in the critical section.
	Propagate
	// PropagateAck acknowledges that a propagated Event was applied.
	PropagateAck
)

// String ...
func (t MessageType) String() string {
	switch t {
	case Request:
		return "Request"
	case Reply:
		return "Reply"
	case Propagate:
		return "Propagate"
	case PropagateAck:
		return "PropagateAck"
	default:
		return "Unknown"
	}
}

// AppMessage is exchanged between nodes by the Messenger. Timestamp is the
// sender's Lamport clock at send time. Event is only set for Request and
// Propagate; Reply and PropagateAck refer to the Event by its ID.
type AppMessage struct {
	Type      MessageType
	SenderID  uint32
	Timestamp uint64
	EventID   event.ID
	Event     *event.Event `codec:",omitempty"`
}

// String ...
func (m *AppMessage) String() string {
	return fmt.Sprintf("%s(from=%d ts=%d event=%s)", m.Type, m.SenderID, m.Timestamp, m.EventID)
}

// Marshal - msgpack encoding of AppMessage
func (m *AppMessage) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, wireHandle())

	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (m *AppMessage) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	dec := codec.NewDecoder(b, wireHandle())

	return dec.Decode(m)
}

// Delivery is an AppMessage received from a peer, in the order that peer sent
// it.
type Delivery struct {
	From    uint32
	Message *AppMessage
}
