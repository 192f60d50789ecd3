// Package pebbledb is the cockroachdb/pebble backend of db.Database.
package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/Rdilshan/e-voting-web-sub000/db"
)

// PebbleDB implements db.Database.
type PebbleDB struct {
	db *pebble.DB
}

var _ db.Database = (*PebbleDB)(nil)

// New opens, or creates, the database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if err := os.MkdirAll(opts.Path, os.ModePerm); err != nil {
		return nil, err
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", opts.Path, err)
	}
	return &PebbleDB{db: pdb}, nil
}

func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	return get(d.db.Get(key))
}

func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, callback)
}

// WriteTx returns an indexed batch. Pebble batches do not detect conflicts:
// the last commit wins.
func (d *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{batch: d.db.NewIndexedBatch()}
}

func (d *PebbleDB) Close() error {
	return d.db.Close()
}

// Compact compacts the whole key space.
func (d *PebbleDB) Compact() error {
	iter, err := d.db.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
	}
	if iter.Last() {
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil || last == nil {
		return nil
	}
	return d.db.Compact(first, append(last, 0xff), true)
}

// WriteTx implements db.WriteTx over a pebble batch.
type WriteTx struct {
	batch *pebble.Batch
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	return get(tx.batch.Get(key))
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := tx.batch.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *WriteTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if o, ok := other.(*WriteTx); ok {
		return tx.batch.Apply(o.batch, nil)
	}
	var err error
	if ierr := other.Iterate(nil, func(k, v []byte) bool {
		err = tx.Set(k, v)
		return err == nil
	}); ierr != nil {
		return ierr
	}
	return err
}

func (tx *WriteTx) Commit() error {
	return tx.batch.Commit(pebble.Sync)
}

// Discard releases the batch. It is safe to call after Commit.
func (tx *WriteTx) Discard() {
	if tx.batch == nil {
		return
	}
	// closed batches go back to a pool, so never close one twice
	_ = tx.batch.Close()
	tx.batch = nil
}

func get(value []byte, closer io.Closer, err error) ([]byte, error) {
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(value), nil
}

func iterate(iter *pebble.Iterator, callback func(key, value []byte) bool) (err error) {
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return nil
	}
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	}
}

// upperBound returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
