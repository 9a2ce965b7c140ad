package net

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/mxboard/src/common"
)

type readResult struct {
	data []byte
	err  error
}

//scriptedReader replays a fixed list of reads, then blocks until closed.
type scriptedReader struct {
	sync.Mutex
	results []readResult
	closeCh chan struct{}
}

func (r *scriptedReader) ReadFrom(p []byte) (int, net.Addr, error) {
	r.Lock()
	if len(r.results) > 0 {
		res := r.results[0]
		r.results = r.results[1:]
		r.Unlock()
		if res.err != nil {
			return 0, nil, res.err
		}
		return copy(p, res.data), &net.UDPAddr{}, nil
	}
	r.Unlock()

	<-r.closeCh
	return 0, nil, net.ErrClosed
}

func newTestUDPChannel(t *testing.T) *UDPChannel {
	uc, err := NewUDPChannel("127.0.0.1:0", "", 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	return uc
}

func TestUDPChannel_ReadErrorDoesNotStopDelivery(t *testing.T) {
	uc := newTestUDPChannel(t)
	defer uc.Close()

	reader := &scriptedReader{
		results: []readResult{
			{err: errors.New("read udp: connection refused")},
			{err: errors.New("read udp: connection refused")},
			{data: []byte("after error")},
		},
		closeCh: make(chan struct{}),
	}
	defer close(reader.closeCh)

	go uc.readLoop(reader)

	select {
	case got := <-uc.Consumer():
		if !bytes.Equal(got, []byte("after error")) {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("datagram following a read error should be delivered")
	}
}

func TestUDPChannel_ReceivesAfterUnreachableTarget(t *testing.T) {
	uc := newTestUDPChannel(t)
	defer uc.Close()

	//bind and release a port so nothing listens on it
	gone := newTestUDPChannel(t)
	goneAddr := gone.LocalAddr()
	gone.Close()

	for i := 0; i < 3; i++ {
		uc.Send(goneAddr, []byte("lost"))
	}
	time.Sleep(50 * time.Millisecond)

	sender := newTestUDPChannel(t)
	defer sender.Close()

	payload := []byte("still listening")
	if err := sender.Send(uc.LocalAddr(), payload); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case got := <-uc.Consumer():
		if !bytes.Equal(got, payload) {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("channel should keep receiving after sending to an unreachable peer")
	}
}
