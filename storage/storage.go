/*
Package storage keeps the node's local records on a key-value database.

# Storage Organization

- e/ : electionID (32 bytes, big endian) → ElectionRecord
- r/ : runID → ProvisioningRun (journal of every provisioning request)

Records are CBOR encoded. Decoded records are cached; callers must not
modify the records they get back.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Rdilshan/e-voting-web-sub000/db"
	"github.com/Rdilshan/e-voting-web-sub000/db/prefixeddb"
	"github.com/Rdilshan/e-voting-web-sub000/log"
)

const cacheSize = 1000

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	electionPrefix = []byte("e/")
	runPrefix      = []byte("r/")
)

// Storage stores election records and provisioning runs.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, any]
}

// New returns a Storage over database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + string(key)
}

// getArtifact decodes the artifact at prefix+key into out.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return DecodeArtifact(data, out)
}

// setArtifact stores artifact at prefix+key. If insertOnly is set an
// existing key is not overwritten and ErrKeyAlreadyExists is returned.
func (s *Storage) setArtifact(prefix, key []byte, artifact any, insertOnly bool) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if insertOnly {
		if _, err := wTx.Get(key); err == nil {
			return ErrKeyAlreadyExists
		}
	}
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	s.cache.Add(cacheKey(prefix, key), artifact)
	return nil
}

// listKeys returns the keys under prefix, without it.
func (s *Storage) listKeys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, append([]byte(nil), k...))
		return true
	}); err != nil {
		return nil, err
	}
	return keys, nil
}
