package store

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/ugorji/go/codec"
)

// Entry is an item on the board. Number records the order in which entries
// were created; it is preserved when an entry is updated.
type Entry struct {
	Key         string
	Value       string
	Number      uint64
	LastEventID event.ID
	Timestamp   uint64
}

// String ...
func (e *Entry) String() string {
	return fmt.Sprintf("#%d %s=%q", e.Number, e.Key, e.Value)
}

// Marshal - json encoding of Entry
func (e *Entry) Marshal() ([]byte, error) {
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
func (e *Entry) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}
