// Package db defines the key-value database used by the node's local
// storage, and the transactions over it.
package db

import "errors"

const (
	// TypePebble selects the cockroachdb/pebble backend.
	TypePebble = "pebble"
	// TypeInMem selects the ephemeral in-memory backend.
	TypeInMem = "inmem"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when a key read by the transaction
	// was modified by another transaction in the meantime.
	ErrConflict = errors.New("transaction conflict")
	// ErrTxClosed is returned when a committed or discarded transaction is
	// committed again.
	ErrTxClosed = errors.New("transaction already committed or discarded")
)

// Options configures a backend.
type Options struct {
	Path string
}

// Reader reads keys and ranges of keys.
type Reader interface {
	// Get returns a copy of the value stored at key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix, in
	// lexicographic order, until callback returns false. The slices passed
	// to callback are only valid during the call. Keys are passed without
	// the prefix stripped.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a read-write transaction. Reads observe the transaction's own
// pending writes. Discard must always be called, also after Commit.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies every key/value of other into the transaction.
	Apply(other WriteTx) error
	Commit() error
	Discard()
}

// Database is a key-value store.
type Database interface {
	Reader
	WriteTx() WriteTx
	Close() error
	Compact() error
}
