package event

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Kind is the type of modification an Event applies to an entry.
type Kind uint8

const (
	// Create adds a new entry.
	Create Kind = iota
	// Update changes the value of an existing entry.
	Update
	// Delete removes an entry.
	Delete
)

// String ...
func (k Kind) String() string {
	switch k {
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// ID uniquely identifies an Event across the cluster. Node is the id of the
// node that created the Event, and Counter is a per-node monotonic counter.
type ID struct {
	Node    uint32
	Counter uint64
}

// String ...
func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Node, id.Counter)
}

// IsZero reports whether the ID is unset. Counters start at 1.
func (id ID) IsZero() bool {
	return id.Counter == 0
}

// Event is an immutable transaction on the board.
type Event struct {
	ID        ID
	Kind      Kind
	Key       string
	Value     string
	Timestamp uint64
}

// NewEvent ...
func NewEvent(id ID, kind Kind, key, value string, timestamp uint64) *Event {
	return &Event{
		ID:        id,
		Kind:      kind,
		Key:       key,
		Value:     value,
		Timestamp: timestamp,
	}
}

// Less reports whether e is ordered strictly before o. Events are ordered by
// Timestamp, then by origin node, then by counter.
func (e *Event) Less(o *Event) bool {
	return Precedes(e.Timestamp, e.ID, o.Timestamp, o.ID)
}

// Precedes compares two (timestamp, id) pairs lexicographically.
func Precedes(ts1 uint64, id1 ID, ts2 uint64, id2 ID) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	if id1.Node != id2.Node {
		return id1.Node < id2.Node
	}
	return id1.Counter < id2.Counter
}

// String ...
func (e *Event) String() string {
	return fmt.Sprintf("%s(%s %s=%q ts=%d)", e.Kind, e.ID, e.Key, e.Value, e.Timestamp)
}

// Marshal - json encoding of Event
func (e *Event) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (e *Event) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(e); err != nil {
		return err
	}

	return nil
}

// Intent is a request from the application to modify the board. The node
// turns it into an Event when it is its turn to enter the critical section.
type Intent struct {
	Kind  Kind
	Key   string
	Value string
}
