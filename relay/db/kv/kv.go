// Package kv implements the relay store interface using BoltDB as the
// underlying persistent kv-store. Every relay owns two stores: a local
// store for requests it originated and a remote store for requests
// peers sent it.
package kv

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/dlt-interop/relay/relay/codec"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const databaseFileName = "relay.db"

// Key prefixes partitioning the keyspace. A bare uuid key holds a
// RequestState (local store) or a Query (remote store).
const (
	EventSubscriptionPrefix = "event_sub_"
	EventPublicationPrefix  = "event_pub_"
	SATPSessionPrefix       = "satp_"
)

var recordsBucket = []byte("records")

// Store is a single ordered KV tree holding the prefixed keyspace of
// one relay store.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore initializes a boltDB key-value store at the directory
// path specified, creates the records bucket, and returns the open
// store.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := filepath.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	s := &Store{db: boltDB, databasePath: dirPath}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// Set overwrites the value at key. Atomic at single-key granularity;
// no update path in the relay mutates more than one key.
func (s *Store) Set(key string, value interface{}) error {
	enc, err := codec.Marshal(value)
	if err != nil {
		return errors.Wrap(types.ErrStorage, err.Error())
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(key), enc)
	})
	if err != nil {
		return errors.Wrap(types.ErrStorage, err.Error())
	}
	return nil
}

// Get decodes the value at key into out. A missing key is ErrNotFound;
// a present but undecodable value is ErrDecode.
func (s *Store) Get(key string, out interface{}) error {
	var enc []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(key))
		if v != nil {
			enc = make([]byte, len(v))
			copy(enc, v)
		}
		return nil
	}); err != nil {
		return errors.Wrap(types.ErrStorage, err.Error())
	}
	if enc == nil {
		return errors.Wrapf(types.ErrNotFound, "key %s", key)
	}
	if err := codec.Unmarshal(enc, out); err != nil {
		return errors.Wrapf(types.ErrDecode, "key %s: %v", key, err)
	}
	return nil
}

// Unset removes the key, decoding the prior value into out when out is
// non-nil. A missing key is ErrNotFound.
func (s *Store) Unset(key string, out interface{}) error {
	var enc []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordsBucket)
		v := bkt.Get([]byte(key))
		if v == nil {
			return errors.Wrapf(types.ErrNotFound, "key %s", key)
		}
		enc = make([]byte, len(v))
		copy(enc, v)
		return bkt.Delete([]byte(key))
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return errors.Wrap(types.ErrStorage, err.Error())
	}
	if out != nil {
		if err := codec.Unmarshal(enc, out); err != nil {
			return errors.Wrapf(types.ErrDecode, "key %s: %v", key, err)
		}
	}
	return nil
}

// Has reports whether the key is present.
func (s *Store) Has(key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(recordsBucket).Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrap(types.ErrStorage, err.Error())
	}
	return found, nil
}

// ScanPrefix returns the raw encoded values of every key under the
// given prefix, in key order.
func (s *Store) ScanPrefix(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[string(k)] = cp
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(types.ErrStorage, err.Error())
	}
	return out, nil
}
