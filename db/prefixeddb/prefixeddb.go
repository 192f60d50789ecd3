// Package prefixeddb namespaces a db.Database: every key is transparently
// prefixed on write and stripped on read.
package prefixeddb

import (
	"bytes"

	"github.com/Rdilshan/e-voting-web-sub000/db"
)

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixedReader is a db.Reader restricted to a prefix.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

// NewPrefixedReader returns a reader over the keys of r under prefix.
func NewPrefixedReader(r db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: bytes.Clone(prefix), reader: r}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixed(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(prefixed(r.prefix, prefix), func(k, v []byte) bool {
		return callback(k[len(r.prefix):], v)
	})
}

// PrefixedDatabase is a db.Database restricted to a prefix.
type PrefixedDatabase struct {
	PrefixedReader
	db db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a database over the keys of d under prefix.
// Prefixed databases can be nested.
func NewPrefixedDatabase(d db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{
		PrefixedReader: PrefixedReader{prefix: bytes.Clone(prefix), reader: d},
		db:             d,
	}
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

// PrefixedWriteTx is a db.WriteTx restricted to a prefix.
type PrefixedWriteTx struct {
	PrefixedReader
	tx db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx wraps tx so that every key is under prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{
		PrefixedReader: PrefixedReader{prefix: bytes.Clone(prefix), reader: tx},
		tx:             tx,
	}
}

func (tx *PrefixedWriteTx) Set(key, value []byte) error {
	return tx.tx.Set(prefixed(tx.prefix, key), value)
}

func (tx *PrefixedWriteTx) Delete(key []byte) error {
	return tx.tx.Delete(prefixed(tx.prefix, key))
}

// Apply copies the keys of other under this transaction's prefix.
func (tx *PrefixedWriteTx) Apply(other db.WriteTx) error {
	var err error
	if ierr := other.Iterate(nil, func(k, v []byte) bool {
		err = tx.Set(k, v)
		return err == nil
	}); ierr != nil {
		return ierr
	}
	return err
}

func (tx *PrefixedWriteTx) Commit() error {
	return tx.tx.Commit()
}

func (tx *PrefixedWriteTx) Discard() {
	tx.tx.Discard()
}
