package net

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Frame is the unit exchanged by Connections over a Channel. Seq numbers start
// at 1; a Frame with Seq 0 and no Payload only carries an acknowledgement. Ack
// is cumulative: every message up to and including Ack has been delivered.
type Frame struct {
	From    uint32
	Seq     uint64
	Ack     uint64
	Payload []byte
}

// IsAckOnly reports whether the Frame carries no payload.
func (f *Frame) IsAckOnly() bool {
	return f.Seq == 0
}

// String ...
func (f *Frame) String() string {
	return fmt.Sprintf("Frame(from=%d seq=%d ack=%d len=%d)", f.From, f.Seq, f.Ack, len(f.Payload))
}

func wireHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	return mh
}

// Marshal - msgpack encoding of Frame
func (f *Frame) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, wireHandle())

	if err := enc.Encode(f); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (f *Frame) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	dec := codec.NewDecoder(b, wireHandle())

	return dec.Decode(f)
}
