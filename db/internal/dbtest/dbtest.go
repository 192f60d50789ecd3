// Package dbtest holds the conformance tests shared by the db backends.
package dbtest

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/Rdilshan/e-voting-web-sub000/db"
)

// TestWriteTx checks read-your-writes, commit and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// not visible outside the tx before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// discarded writes are lost
	wTx = database.WriteTx()
	c.Assert(wTx.Set([]byte("c"), []byte("d")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	wTx.Discard()

	_, err = database.Get([]byte("c"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)

	// committed deletes are visible
	wTx = database.WriteTx()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix iteration order and early stop.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := 0; i < 10; i++ {
		c.Assert(wTx.Set([]byte(fmt.Sprintf("x/%02d", i)), []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("y/00"), []byte{0xff}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	var keys []string
	c.Assert(database.Iterate([]byte("x/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "x/00")
	c.Assert(keys[9], qt.Equals, "x/09")

	count := 0
	c.Assert(database.Iterate([]byte("x/"), func(k, v []byte) bool {
		count++
		return count < 3
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 3)

	// a tx sees its own pending writes and deletes
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Delete([]byte("x/00")), qt.IsNil)
	c.Assert(wTx.Set([]byte("x/10"), []byte{10}), qt.IsNil)
	keys = nil
	c.Assert(wTx.Iterate([]byte("x/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "x/01")
	c.Assert(keys[9], qt.Equals, "x/10")
}

// TestWriteTxApply checks that Apply copies pending writes.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	src := database.WriteTx()
	defer src.Discard()
	c.Assert(src.Set([]byte("k1"), []byte("v1")), qt.IsNil)

	dst := database.WriteTx()
	defer dst.Discard()
	c.Assert(dst.Apply(src), qt.IsNil)
	c.Assert(dst.Commit(), qt.IsNil)

	v, err := database.Get([]byte("k1"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("v1"))
}

// TestWriteTxApplyPrefixed checks Apply between a plain and a prefixed
// database over the same backend.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	src := database.WriteTx()
	defer src.Discard()
	c.Assert(src.Set([]byte("k1"), []byte("v1")), qt.IsNil)

	dst := prefixed.WriteTx()
	defer dst.Discard()
	c.Assert(dst.Apply(src), qt.IsNil)
	c.Assert(dst.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("k1"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("v1"))
	// committed through the prefixed tx only
	_, err = database.Get([]byte("k1"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestConcurrentWriteTx checks that the second of two transactions writing
// the same key fails to commit. Only backends with conflict detection pass.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx1 := database.WriteTx()
	defer tx1.Discard()
	tx2 := database.WriteTx()
	defer tx2.Discard()

	_, err := tx1.Get([]byte("counter"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	_, err = tx2.Get([]byte("counter"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx1.Set([]byte("counter"), []byte{1}), qt.IsNil)
	c.Assert(tx2.Set([]byte("counter"), []byte{2}), qt.IsNil)

	c.Assert(tx1.Commit(), qt.IsNil)
	c.Assert(tx2.Commit(), qt.ErrorIs, db.ErrConflict)

	v, err := database.Get([]byte("counter"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{1})
}
