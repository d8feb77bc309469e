package kv

import (
	"github.com/dlt-interop/relay/relay/codec"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// RequestState retrieves the request record stored under the bare
// request id key.
func (s *Store) RequestState(requestID string) (*types.RequestState, error) {
	st := &types.RequestState{}
	if err := s.Get(requestID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveRequestState overwrites the request record.
func (s *Store) SaveRequestState(requestID string, st *types.RequestState) error {
	return s.Set(requestID, st)
}

// SaveRequestStateIfStatus writes st only while the stored record still
// has the expected status, checked and written in one transaction. The
// returned bool reports whether the write happened; a missing record or
// a record already advanced past expect is left untouched.
func (s *Store) SaveRequestStateIfStatus(requestID string, expect types.RequestStatus, st *types.RequestState) (bool, error) {
	key := []byte(requestID)
	written := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordsBucket)
		v := bkt.Get(key)
		if v == nil {
			return nil
		}
		cur := &types.RequestState{}
		if err := codec.Unmarshal(v, cur); err != nil {
			return errors.Wrapf(types.ErrDecode, "key %s: %v", requestID, err)
		}
		if cur.Status != expect {
			return nil
		}
		enc, err := codec.Marshal(st)
		if err != nil {
			return err
		}
		written = true
		return bkt.Put(key, enc)
	})
	if err != nil {
		if errors.Is(err, types.ErrDecode) {
			return false, err
		}
		return false, errors.Wrap(types.ErrStorage, err.Error())
	}
	return written, nil
}

// Query retrieves the cross-relay query stored on the receiving relay
// under the bare request id key.
func (s *Store) Query(requestID string) (*types.Query, error) {
	q := &types.Query{}
	if err := s.Get(requestID, q); err != nil {
		return nil, err
	}
	return q, nil
}

// SaveQuery persists an inbound query. Queries are immutable after
// insert; callers never rewrite them.
func (s *Store) SaveQuery(requestID string, q *types.Query) error {
	return s.Set(requestID, q)
}
