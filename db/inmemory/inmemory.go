// Package inmemory is a db.Database kept in a map, for tests and for nodes
// that do not need to keep their local records across restarts.
package inmemory

import (
	"bytes"
	"slices"
	"strings"
	"sync"

	"github.com/Rdilshan/e-voting-web-sub000/db"
)

type entry struct {
	value   []byte
	version uint64
}

// InMemoryDB implements db.Database with optimistic transactions: a commit
// fails with db.ErrConflict if a key the transaction read changed since.
type InMemoryDB struct {
	mu      sync.RWMutex
	data    map[string]entry
	version uint64
	// tombstones keep the version of deleted keys so that a delete is seen
	// as a change by concurrent transactions
	tombstones map[string]uint64
}

var _ db.Database = (*InMemoryDB)(nil)

// New returns an empty database. Options are ignored.
func New(_ db.Options) (*InMemoryDB, error) {
	return &InMemoryDB{
		data:       make(map[string]entry),
		tombstones: make(map[string]uint64),
	}, nil
}

func (d *InMemoryDB) Close() error   { return nil }
func (d *InMemoryDB) Compact() error { return nil }

func (d *InMemoryDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.data[string(key)]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(e.value), nil
}

func (d *InMemoryDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	snapshot := make(map[string][]byte)
	for k, e := range d.data {
		if strings.HasPrefix(k, string(prefix)) {
			snapshot[k] = bytes.Clone(e.value)
		}
	}
	d.mu.RUnlock()
	walk(snapshot, callback)
	return nil
}

func (d *InMemoryDB) WriteTx() db.WriteTx {
	return &writeTx{
		db:     d,
		writes: make(map[string][]byte),
		reads:  make(map[string]uint64),
	}
}

// versionOf must be called with the lock held.
func (d *InMemoryDB) versionOf(key string) uint64 {
	if e, ok := d.data[key]; ok {
		return e.version
	}
	return d.tombstones[key]
}

// writeTx buffers writes; a nil value in writes is a pending delete.
type writeTx struct {
	db     *InMemoryDB
	writes map[string][]byte
	reads  map[string]uint64
	closed bool
}

func (tx *writeTx) observe(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	tx.reads[key] = tx.db.versionOf(key)
	tx.db.mu.RUnlock()
}

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := tx.writes[k]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	tx.observe(k)
	return tx.db.Get(key)
}

func (tx *writeTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	tx.db.mu.RLock()
	merged := make(map[string][]byte)
	for k, e := range tx.db.data {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		merged[k] = bytes.Clone(e.value)
		if _, ok := tx.reads[k]; !ok {
			tx.reads[k] = e.version
		}
	}
	tx.db.mu.RUnlock()
	for k, v := range tx.writes {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = bytes.Clone(v)
		}
	}
	walk(merged, callback)
	return nil
}

func (tx *writeTx) Set(key, value []byte) error {
	k := string(key)
	tx.observe(k)
	tx.writes[k] = bytes.Clone(value)
	if tx.writes[k] == nil {
		tx.writes[k] = []byte{}
	}
	return nil
}

func (tx *writeTx) Delete(key []byte) error {
	k := string(key)
	tx.observe(k)
	tx.writes[k] = nil
	return nil
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	var err error
	if ierr := other.Iterate(nil, func(k, v []byte) bool {
		err = tx.Set(k, v)
		return err == nil
	}); ierr != nil {
		return ierr
	}
	return err
}

func (tx *writeTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	d := tx.db
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, seen := range tx.reads {
		if d.versionOf(k) != seen {
			return db.ErrConflict
		}
	}
	for k, v := range tx.writes {
		d.version++
		if v == nil {
			delete(d.data, k)
			d.tombstones[k] = d.version
			continue
		}
		delete(d.tombstones, k)
		d.data[k] = entry{value: v, version: d.version}
	}
	tx.closed = true
	return nil
}

func (tx *writeTx) Discard() {
	tx.closed = true
	tx.writes = map[string][]byte{}
	tx.reads = map[string]uint64{}
}

func walk(entries map[string][]byte, callback func(key, value []byte) bool) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k), entries[k]) {
			return
		}
	}
}
