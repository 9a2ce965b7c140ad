package commands

import (
	"reflect"
	"testing"

	"github.com/mosaicnetworks/mxboard/src/event"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		line   string
		intent event.Intent
		err    bool
	}{
		{"create title hello world", event.Intent{Kind: event.Create, Key: "title", Value: "hello world"}, false},
		{"  UPDATE title   bye  ", event.Intent{Kind: event.Update, Key: "title", Value: "bye"}, false},
		{"create c c", event.Intent{Kind: event.Create, Key: "c", Value: "c"}, false},
		{"create empty", event.Intent{Kind: event.Create, Key: "empty"}, false},
		{"delete title", event.Intent{Kind: event.Delete, Key: "title"}, false},
		{"delete title now", event.Intent{}, true},
		{"create", event.Intent{}, true},
		{"move a b", event.Intent{}, true},
	}

	for _, c := range cases {
		intent, err := parseIntent(c.line)
		if c.err {
			if err == nil {
				t.Fatalf("%q should fail", c.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", c.line, err)
		}
		if !reflect.DeepEqual(intent, c.intent) {
			t.Fatalf("%q: expected %+v, got %+v", c.line, c.intent, intent)
		}
	}
}
