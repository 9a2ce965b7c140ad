package store

import (
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/event"
)

// InmemStore implements the Store interface with in-memory maps.
type InmemStore struct {
	sync.RWMutex
	entries    map[string]*Entry
	events     map[event.ID]*event.Event
	applied    []event.ID
	nextNumber uint64
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		entries:    make(map[string]*Entry),
		events:     make(map[event.ID]*event.Event),
		nextNumber: 1,
	}
}

// Apply implements the Store interface. It returns false if the event was
// already applied.
//
// Create adds an entry, or overwrites the value of an existing one while
// keeping its creation number. Update and Delete on a missing key leave the
// board unchanged but the event is still recorded.
func (s *InmemStore) Apply(ev *event.Event) (bool, error) {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		return false, nil
	}

	s.applyEntry(ev)

	cp := *ev
	s.events[ev.ID] = &cp
	s.applied = append(s.applied, ev.ID)

	return true, nil
}

//must be called with the lock held
func (s *InmemStore) applyEntry(ev *event.Event) {
	_, existed := s.entries[ev.Key]

	e := s.resultingEntry(ev)
	if e == nil {
		delete(s.entries, ev.Key)
		return
	}

	s.entries[ev.Key] = e
	if !existed {
		s.nextNumber++
	}
}

//resultingEntry returns a copy of the entry ev leaves under its key, or nil if
//the key ends up absent. It does not modify the board. Must be called with
//the lock held.
func (s *InmemStore) resultingEntry(ev *event.Event) *Entry {
	cur, ok := s.entries[ev.Key]

	switch ev.Kind {
	case event.Create:
		if !ok {
			return &Entry{
				Key:         ev.Key,
				Value:       ev.Value,
				Number:      s.nextNumber,
				LastEventID: ev.ID,
				Timestamp:   ev.Timestamp,
			}
		}
	case event.Update:
		if !ok {
			return nil
		}
	default:
		return nil
	}

	e := *cur
	e.Value = ev.Value
	e.LastEventID = ev.ID
	e.Timestamp = ev.Timestamp
	return &e
}

//preview returns the applied index ev would take and the entry it would leave
//under its key, without applying it. ok is false if ev was already applied.
func (s *InmemStore) preview(ev *event.Event) (index int, entry *Entry, ok bool) {
	s.RLock()
	defer s.RUnlock()

	if _, dup := s.events[ev.ID]; dup {
		return 0, nil, false
	}

	return len(s.applied), s.resultingEntry(ev), true
}

// GetEntry implements the Store interface.
func (s *InmemStore) GetEntry(key string) (*Entry, error) {
	s.RLock()
	defer s.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, cm.NewStoreErr("Entry", cm.KeyNotFound, key)
	}

	cp := *e
	return &cp, nil
}

// Entries implements the Store interface. Entries are returned in creation
// order.
func (s *InmemStore) Entries() ([]*Entry, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		res = append(res, &cp)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Number < res[j].Number })

	return res, nil
}

// GetEvent implements the Store interface.
func (s *InmemStore) GetEvent(id event.ID) (*event.Event, error) {
	s.RLock()
	defer s.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, cm.NewStoreErr("Event", cm.KeyNotFound, id.String())
	}

	cp := *ev
	return &cp, nil
}

// HasEvent implements the Store interface.
func (s *InmemStore) HasEvent(id event.ID) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.events[id]
	return ok
}

// AppliedEvents implements the Store interface. Events are returned in the
// order they were applied.
func (s *InmemStore) AppliedEvents() ([]*event.Event, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*event.Event, 0, len(s.applied))
	for _, id := range s.applied {
		cp := *s.events[id]
		res = append(res, &cp)
	}

	return res, nil
}

// AppliedCount returns the number of events applied so far.
func (s *InmemStore) AppliedCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.applied)
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
