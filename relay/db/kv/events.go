package kv

import (
	"github.com/dlt-interop/relay/relay/codec"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// EventStates retrieves the accumulated event deliveries at
// event_pub_<request_id>. A missing key yields an empty list rather
// than an error: a subscription with no deliveries yet is not a fault.
func (s *Store) EventStates(requestID string) (*types.EventStates, error) {
	st := &types.EventStates{}
	if err := s.Get(EventPublicationPrefix+requestID, st); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &types.EventStates{}, nil
		}
		return nil, err
	}
	return st, nil
}

// SaveEventStates overwrites the delivery list.
func (s *Store) SaveEventStates(requestID string, st *types.EventStates) error {
	return s.Set(EventPublicationPrefix+requestID, st)
}

// mutateEventStates runs a read-modify-write of the delivery list in
// one transaction, so concurrent mutators of the same key serialize
// instead of overwriting each other.
func (s *Store) mutateEventStates(requestID string, mutate func(st *types.EventStates) error) error {
	key := []byte(EventPublicationPrefix + requestID)
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordsBucket)
		st := &types.EventStates{}
		if v := bkt.Get(key); v != nil {
			if err := codec.Unmarshal(v, st); err != nil {
				return errors.Wrapf(types.ErrDecode, "key %s: %v", key, err)
			}
		}
		if err := mutate(st); err != nil {
			return err
		}
		enc, err := codec.Marshal(st)
		if err != nil {
			return err
		}
		return bkt.Put(key, enc)
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrDecode) {
			return err
		}
		return errors.Wrap(types.ErrStorage, err.Error())
	}
	return nil
}

// PrependEventState pushes a new delivery onto the front of the list,
// creating the list when absent.
func (s *Store) PrependEventState(requestID string, ev types.EventState) error {
	return s.mutateEventStates(requestID, func(st *types.EventStates) error {
		st.States = append([]types.EventState{ev}, st.States...)
		return nil
	})
}

// UpdateEventStateStatus rewrites the status of the delivery identified
// by event id, for the driver write-back path.
func (s *Store) UpdateEventStateStatus(requestID, eventID string, status types.RequestStatus, message string) error {
	return s.mutateEventStates(requestID, func(st *types.EventStates) error {
		for i := range st.States {
			if st.States[i].EventID == eventID {
				st.States[i].State.Status = status
				st.States[i].Message = message
				return nil
			}
		}
		return errors.Wrapf(types.ErrNotFound, "event %s under request %s", eventID, requestID)
	})
}
