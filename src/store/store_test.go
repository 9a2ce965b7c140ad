package store

import (
	"io/ioutil"
	"os"
	"reflect"
	"strings"
	"testing"

	cm "github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/event"
)

func newEvent(node uint32, counter uint64, kind event.Kind, key, value string, ts uint64) *event.Event {
	return event.NewEvent(event.ID{Node: node, Counter: counter}, kind, key, value, ts)
}

func testStores(t *testing.T) (map[string]Store, func()) {
	dir, err := ioutil.TempDir("", "mxboard-store")
	if err != nil {
		t.Fatal(err)
	}

	bs, err := NewBadgerStore(dir, cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	stores := map[string]Store{
		"inmem":  NewInmemStore(),
		"badger": bs,
	}

	return stores, func() {
		bs.Close()
		os.RemoveAll(dir)
	}
}

func keys(entries []*Entry) []string {
	res := []string{}
	for _, e := range entries {
		res = append(res, e.Key)
	}
	return res
}

func TestStoreApply(t *testing.T) {
	stores, cleanup := testStores(t)
	defer cleanup()

	for name, s := range stores {
		events := []*event.Event{
			newEvent(1, 1, event.Create, "b", "1", 1),
			newEvent(2, 1, event.Create, "a", "2", 2),
			newEvent(1, 2, event.Update, "b", "3", 3),
			newEvent(3, 1, event.Create, "c", "4", 4),
			newEvent(2, 2, event.Delete, "a", "", 5),
		}

		for _, ev := range events {
			applied, err := s.Apply(ev)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if !applied {
				t.Fatalf("%s: %s should be applied", name, ev)
			}
		}

		entries, err := s.Entries()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(keys(entries), []string{"b", "c"}) {
			t.Fatalf("%s: entries should be [b c] in creation order, got %v", name, keys(entries))
		}

		b, err := s.GetEntry("b")
		if err != nil {
			t.Fatal(err)
		}
		if b.Value != "3" || b.Number != 1 || b.LastEventID != events[2].ID {
			t.Fatalf("%s: unexpected entry %#v", name, b)
		}

		if _, err := s.GetEntry("a"); !cm.IsStore(err, cm.KeyNotFound) {
			t.Fatalf("%s: deleted entry should not be found, got %v", name, err)
		}

		applied, err := s.AppliedEvents()
		if err != nil {
			t.Fatal(err)
		}
		if len(applied) != len(events) {
			t.Fatalf("%s: %d events should be applied, not %d", name, len(events), len(applied))
		}
		for i, ev := range events {
			if *applied[i] != *ev {
				t.Fatalf("%s: applied[%d] should be %s, not %s", name, i, ev, applied[i])
			}
		}
	}
}

func TestStoreApplyIdempotent(t *testing.T) {
	stores, cleanup := testStores(t)
	defer cleanup()

	for name, s := range stores {
		ev := newEvent(1, 1, event.Create, "k", "v", 1)

		if applied, _ := s.Apply(ev); !applied {
			t.Fatalf("%s: first Apply should apply", name)
		}
		if applied, _ := s.Apply(ev); applied {
			t.Fatalf("%s: second Apply should be a no-op", name)
		}

		if !s.HasEvent(ev.ID) {
			t.Fatalf("%s: HasEvent should be true", name)
		}
		if s.HasEvent(event.ID{Node: 1, Counter: 2}) {
			t.Fatalf("%s: HasEvent should be false for unknown id", name)
		}

		got, err := s.GetEvent(ev.ID)
		if err != nil {
			t.Fatal(err)
		}
		if *got != *ev {
			t.Fatalf("%s: GetEvent should return %s, not %s", name, ev, got)
		}

		if _, err := s.GetEvent(event.ID{Node: 9, Counter: 9}); !cm.IsStore(err, cm.KeyNotFound) {
			t.Fatalf("%s: unknown event should return KeyNotFound, got %v", name, err)
		}

		all, _ := s.AppliedEvents()
		if len(all) != 1 {
			t.Fatalf("%s: only one event should be recorded, got %d", name, len(all))
		}
	}
}

func TestStoreMissingKeys(t *testing.T) {
	stores, cleanup := testStores(t)
	defer cleanup()

	for name, s := range stores {
		s.Apply(newEvent(1, 1, event.Update, "ghost", "boo", 1))
		s.Apply(newEvent(1, 2, event.Delete, "ghost", "", 2))

		entries, _ := s.Entries()
		if len(entries) != 0 {
			t.Fatalf("%s: update and delete of missing key should not create entries", name)
		}

		//recreating an existing key keeps its number
		s.Apply(newEvent(1, 3, event.Create, "x", "1", 3))
		s.Apply(newEvent(1, 4, event.Create, "y", "2", 4))
		s.Apply(newEvent(2, 1, event.Create, "x", "3", 5))

		entries, _ = s.Entries()
		if !reflect.DeepEqual(keys(entries), []string{"x", "y"}) {
			t.Fatalf("%s: entries should be [x y], got %v", name, keys(entries))
		}
		if entries[0].Value != "3" {
			t.Fatalf("%s: x should be overwritten, got %q", name, entries[0].Value)
		}
	}
}

func TestBadgerStoreReload(t *testing.T) {
	dir, err := ioutil.TempDir("", "mxboard-badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	logger := cm.NewTestEntry(t, cm.TestLogLevel)

	store, err := NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}

	events := []*event.Event{
		newEvent(1, 1, event.Create, "first", "a", 1),
		newEvent(2, 1, event.Create, "second", "b", 2),
		newEvent(1, 2, event.Update, "first", "c", 3),
		newEvent(2, 2, event.Delete, "second", "", 4),
	}
	for _, ev := range events {
		if _, err := store.Apply(ev); err != nil {
			t.Fatal(err)
		}
	}

	dbEntry, err := store.dbGetEntry("first")
	if err != nil {
		t.Fatal(err)
	}
	if dbEntry.Value != "c" {
		t.Fatalf("persisted entry should have value c, not %q", dbEntry.Value)
	}
	if _, err := store.dbGetEntry("second"); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("deleted entry should be removed from the database, got %v", err)
	}

	expectedEntries, _ := store.Entries()

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()

	if reloaded.StorePath() != dir {
		t.Fatalf("StorePath should be %s, not %s", dir, reloaded.StorePath())
	}

	entries, _ := reloaded.Entries()
	if !reflect.DeepEqual(entries, expectedEntries) {
		t.Fatalf("reloaded entries should be %v, not %v", expectedEntries, entries)
	}

	applied, _ := reloaded.AppliedEvents()
	if len(applied) != len(events) {
		t.Fatalf("%d events should be replayed, not %d", len(events), len(applied))
	}
	for i, ev := range events {
		if *applied[i] != *ev {
			t.Fatalf("replayed[%d] should be %s, not %s", i, ev, applied[i])
		}
	}

	if applied, _ := reloaded.Apply(events[0]); applied {
		t.Fatalf("replayed event should not be applied again")
	}
}

func TestBadgerStoreFailedWrite(t *testing.T) {
	dir, err := ioutil.TempDir("", "mxboard-badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	logger := cm.NewTestEntry(t, cm.TestLogLevel)

	store, err := NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}

	//badger rejects keys longer than 65000 bytes
	tooLong := newEvent(1, 1, event.Create, strings.Repeat("k", 70000), "a", 1)
	applied, err := store.Apply(tooLong)
	if err == nil {
		t.Fatal("applying an event with an oversized key should fail")
	}
	if applied {
		t.Fatal("a failed write should not report the event as applied")
	}
	if store.HasEvent(tooLong.ID) {
		t.Fatal("a failed write should not be recorded in memory")
	}
	if c := store.inmemStore.AppliedCount(); c != 0 {
		t.Fatalf("applied count should be 0, not %d", c)
	}
	if entries, _ := store.Entries(); len(entries) != 0 {
		t.Fatalf("board should be empty, got %v", keys(entries))
	}

	ok := newEvent(1, 2, event.Create, "first", "b", 2)
	if applied, err := store.Apply(ok); err != nil || !applied {
		t.Fatalf("event should be applied, got %v, %v", applied, err)
	}
	entry, _ := store.GetEntry("first")
	if entry.Number != 1 {
		t.Fatalf("first entry should take number 1, not %d", entry.Number)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewBadgerStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()

	events, _ := reloaded.AppliedEvents()
	if len(events) != 1 || *events[0] != *ok {
		t.Fatalf("only the successful event should be replayed, got %v", events)
	}
	if reloaded.HasEvent(tooLong.ID) {
		t.Fatal("the failed event should not be persisted")
	}
}

func TestBadgerStoreClosed(t *testing.T) {
	dir, err := ioutil.TempDir("", "mxboard-badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := NewBadgerStore(dir, cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close should do nothing, got %v", err)
	}

	ev := newEvent(1, 1, event.Create, "a", "1", 1)
	if _, err := store.Apply(ev); !cm.IsStore(err, cm.Closed) {
		t.Fatalf("Apply on a closed store should return a Closed error, got %v", err)
	}
	if _, err := store.GetEvent(ev.ID); !cm.IsStore(err, cm.Closed) {
		t.Fatalf("GetEvent on a closed store should return a Closed error, got %v", err)
	}
}
