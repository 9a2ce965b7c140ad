package store

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/sirupsen/logrus"
)

const (
	eventPrefix   = "event"
	appliedPrefix = "applied"
	entryPrefix   = "entry"
)

// BadgerStore contains references to the Badger database and to an InmemStore
// which serves all the reads. Writes go to the database first, then to the
// InmemStore.
type BadgerStore struct {
	sync.Mutex
	closed     bool
	inmemStore *InmemStore
	db         *badger.DB
	path       string
	logger     *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path. Events found in an existing database are replayed, in the
// order they were applied, to rebuild the board.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithLogger(logger.WithFields(logrus.Fields{"ns": "badger"}))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
		logger:     logger,
	}

	if err := store.bootstrap(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func eventKey(id event.ID) []byte {
	return []byte(fmt.Sprintf("%s_%010d_%020d", eventPrefix, id.Node, id.Counter))
}

func appliedKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", appliedPrefix, index))
}

func entryKey(key string) []byte {
	return []byte(fmt.Sprintf("%s_%s", entryPrefix, key))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// Apply implements the Store interface. The event and the resulting entry are
// written in a single transaction. The InmemStore is only updated once the
// transaction is committed, so a failed write leaves the event unapplied.
func (s *BadgerStore) Apply(ev *event.Event) (bool, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return false, cm.NewStoreErr("BadgerStore", cm.Closed, s.path)
	}

	index, entry, ok := s.inmemStore.preview(ev)
	if !ok {
		return false, nil
	}

	if err := s.dbApply(ev, index, entry); err != nil {
		return false, err
	}

	return s.inmemStore.Apply(ev)
}

// GetEntry implements the Store interface.
func (s *BadgerStore) GetEntry(key string) (*Entry, error) {
	return s.inmemStore.GetEntry(key)
}

// Entries implements the Store interface.
func (s *BadgerStore) Entries() ([]*Entry, error) {
	return s.inmemStore.Entries()
}

// GetEvent implements the Store interface. It falls back to the database if
// the event is not cached.
func (s *BadgerStore) GetEvent(id event.ID) (*event.Event, error) {
	ev, err := s.inmemStore.GetEvent(id)
	if err == nil {
		return ev, nil
	}

	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil, cm.NewStoreErr("BadgerStore", cm.Closed, s.path)
	}

	ev, err = s.dbGetEvent(id)
	return ev, mapError(err, "Event", id.String())
}

// HasEvent implements the Store interface.
func (s *BadgerStore) HasEvent(id event.ID) bool {
	return s.inmemStore.HasEvent(id)
}

// AppliedEvents implements the Store interface.
func (s *BadgerStore) AppliedEvents() ([]*event.Event, error) {
	return s.inmemStore.AppliedEvents()
}

// Close closes the InmemStore and the underlying Badger database. Subsequent
// calls do nothing.
func (s *BadgerStore) Close() error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath returns the full path of the underlying Badger database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) bootstrap() error {
	events, err := s.dbAppliedEvents()
	if err != nil {
		return err
	}

	for _, ev := range events {
		if _, err := s.inmemStore.Apply(ev); err != nil {
			return err
		}
	}

	if len(events) > 0 {
		s.logger.WithField("events", len(events)).Info("Replayed events from database")
	}

	return nil
}

func (s *BadgerStore) dbApply(ev *event.Event, index int, entry *Entry) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := ev.Marshal()
	if err != nil {
		return err
	}

	//insert [event id] => [event bytes]
	if err := tx.Set(eventKey(ev.ID), val); err != nil {
		return err
	}

	//insert [applied index] => [event key]
	if err := tx.Set(appliedKey(index), eventKey(ev.ID)); err != nil {
		return err
	}

	if entry != nil {
		entryBytes, err := entry.Marshal()
		if err != nil {
			return err
		}
		//insert [entry key] => [entry bytes]
		if err := tx.Set(entryKey(entry.Key), entryBytes); err != nil {
			return err
		}
	} else {
		if err := tx.Delete(entryKey(ev.Key)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGetEvent(id event.ID) (*event.Event, error) {
	var eventBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if err != nil {
			return err
		}
		eventBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	ev := new(event.Event)
	if err := ev.Unmarshal(eventBytes); err != nil {
		return nil, err
	}

	return ev, nil
}

func (s *BadgerStore) dbGetEntry(key string) (*Entry, error) {
	var entryBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(key))
		if err != nil {
			return err
		}
		entryBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Entry", key)
	}

	entry := new(Entry)
	if err := entry.Unmarshal(entryBytes); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *BadgerStore) dbAppliedEvents() ([]*event.Event, error) {
	res := []*event.Event{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(appliedPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			evKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			eventItem, err := txn.Get(evKey)
			if err != nil {
				return err
			}
			eventBytes, err := eventItem.ValueCopy(nil)
			if err != nil {
				return err
			}

			ev := new(event.Event)
			if err := ev.Unmarshal(eventBytes); err != nil {
				return err
			}
			res = append(res, ev)
		}
		return nil
	})

	return res, err
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

func isDBKeyNotFound(err error) bool {
	return err != nil && err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
