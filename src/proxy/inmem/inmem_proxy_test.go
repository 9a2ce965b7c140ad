package inmem

import (
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/sirupsen/logrus"
)

type TestProxy struct {
	*InmemProxy
	events []event.Event
	states []state.State
	logger *logrus.Entry
}

func (p *TestProxy) CommitHandler(ev event.Event) error {
	p.logger.Debug("CommitEvent")

	p.events = append(p.events, ev)

	return nil
}

func (p *TestProxy) StateChangeHandler(s state.State) error {
	p.states = append(p.states, s)
	return nil
}

func NewTestProxy(t *testing.T) *TestProxy {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	proxy := &TestProxy{
		logger: logger,
	}

	proxy.InmemProxy = NewInmemProxy(proxy, logger)

	return proxy
}

func TestInmemProxyAppSide(t *testing.T) {
	proxy := NewTestProxy(t)

	submitCh := proxy.SubmitCh()

	expected := []event.Intent{
		{Kind: event.Create, Key: "k", Value: "v"},
		{Kind: event.Update, Key: "k", Value: "w"},
		{Kind: event.Delete, Key: "k"},
	}

	done := make(chan []event.Intent)

	// Listen for intents
	go func() {
		res := []event.Intent{}
		for len(res) < len(expected) {
			select {
			case intent := <-submitCh:
				res = append(res, intent)
			case <-time.After(time.Second):
				done <- res
				return
			}
		}
		done <- res
	}()

	proxy.SubmitCreate("k", "v")
	proxy.SubmitUpdate("k", "w")
	proxy.SubmitDelete("k")

	res := <-done
	if !reflect.DeepEqual(res, expected) {
		t.Fatalf("intents should be %v, not %v", expected, res)
	}
}

func TestInmemProxyNodeSide(t *testing.T) {
	proxy := NewTestProxy(t)

	events := []event.Event{
		*event.NewEvent(event.ID{Node: 1, Counter: 1}, event.Create, "a", "1", 1),
		*event.NewEvent(event.ID{Node: 2, Counter: 1}, event.Update, "a", "2", 2),
	}

	for _, ev := range events {
		if err := proxy.CommitEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	if !reflect.DeepEqual(proxy.events, events) {
		t.Fatalf("events should be %v, not %v", events, proxy.events)
	}

	proxy.OnStateChanged(state.Requesting)
	proxy.OnStateChanged(state.Idle)

	if !reflect.DeepEqual(proxy.states, []state.State{state.Requesting, state.Idle}) {
		t.Fatalf("unexpected states %v", proxy.states)
	}
}
