// Package metadb opens a db.Database by backend name.
package metadb

import (
	"fmt"

	"github.com/Rdilshan/e-voting-web-sub000/db"
	"github.com/Rdilshan/e-voting-web-sub000/db/inmemory"
	"github.com/Rdilshan/e-voting-web-sub000/db/pebbledb"
)

// New opens a database of the given type (db.TypePebble or db.TypeInMem)
// at dir.
func New(typ, dir string) (db.Database, error) {
	switch typ {
	case db.TypePebble:
		return pebbledb.New(db.Options{Path: dir})
	case db.TypeInMem:
		return inmemory.New(db.Options{})
	default:
		return nil, fmt.Errorf("invalid db type %q, available types: %s, %s", typ, db.TypePebble, db.TypeInMem)
	}
}

// ForTest returns a fresh in-memory database.
func ForTest() db.Database {
	d, err := inmemory.New(db.Options{})
	if err != nil {
		panic(err)
	}
	return d
}
