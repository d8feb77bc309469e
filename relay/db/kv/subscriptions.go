package kv

import (
	"github.com/dlt-interop/relay/relay/types"
)

// EventSubscriptionState retrieves the originating relay's record of a
// subscription at event_sub_<request_id>.
func (s *Store) EventSubscriptionState(requestID string) (*types.EventSubscriptionState, error) {
	st := &types.EventSubscriptionState{}
	if err := s.Get(EventSubscriptionPrefix+requestID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveEventSubscriptionState overwrites the subscription record.
func (s *Store) SaveEventSubscriptionState(requestID string, st *types.EventSubscriptionState) error {
	return s.Set(EventSubscriptionPrefix+requestID, st)
}

// DeleteEventSubscriptionState removes the subscription record.
func (s *Store) DeleteEventSubscriptionState(requestID string) error {
	return s.Unset(EventSubscriptionPrefix+requestID, nil)
}

// EventSubscription retrieves the receiving relay's copy of a
// cross-relay subscription at event_sub_<request_id>.
func (s *Store) EventSubscription(requestID string) (*types.EventSubscription, error) {
	es := &types.EventSubscription{}
	if err := s.Get(EventSubscriptionPrefix+requestID, es); err != nil {
		return nil, err
	}
	return es, nil
}

// SaveEventSubscription persists an inbound subscription on the
// receiving relay.
func (s *Store) SaveEventSubscription(requestID string, es *types.EventSubscription) error {
	return s.Set(EventSubscriptionPrefix+requestID, es)
}

// DeleteEventSubscription removes the receiving relay's copy once the
// upstream unsubscribe is acknowledged.
func (s *Store) DeleteEventSubscription(requestID string) error {
	return s.Unset(EventSubscriptionPrefix+requestID, nil)
}
