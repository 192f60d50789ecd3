package inmemory

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/Rdilshan/e-voting-web-sub000/db"
	"github.com/Rdilshan/e-voting-web-sub000/db/internal/dbtest"
	"github.com/Rdilshan/e-voting-web-sub000/db/prefixeddb"
)

func newTestDB(t *testing.T) *InMemoryDB {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database := newTestDB(t)
	dbtest.TestWriteTxApplyPrefixed(t, database, prefixeddb.NewPrefixedDatabase(database, []byte("one")))
}

func TestConcurrentWriteTx(t *testing.T) {
	dbtest.TestConcurrentWriteTx(t, newTestDB(t))
}

func TestDeleteConflicts(t *testing.T) {
	c := qt.New(t)
	database := newTestDB(t)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("k"), []byte("v")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	reader := database.WriteTx()
	_, err := reader.Get([]byte("k"))
	c.Assert(err, qt.IsNil)

	deleter := database.WriteTx()
	c.Assert(deleter.Delete([]byte("k")), qt.IsNil)
	c.Assert(deleter.Commit(), qt.IsNil)

	c.Assert(reader.Set([]byte("other"), []byte("x")), qt.IsNil)
	c.Assert(reader.Commit(), qt.ErrorIs, db.ErrConflict)
	c.Assert(deleter.Commit(), qt.ErrorIs, db.ErrTxClosed)
}
