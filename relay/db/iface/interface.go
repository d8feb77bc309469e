// Package iface exposes the relay store interface so services can be
// tested against lightweight implementations.
package iface

import (
	"github.com/dlt-interop/relay/relay/types"
)

// Store is the typed KV surface used by every relay service. All
// methods are safe for concurrent use and atomic at single-key
// granularity.
type Store interface {
	RequestState(requestID string) (*types.RequestState, error)
	SaveRequestState(requestID string, st *types.RequestState) error
	SaveRequestStateIfStatus(requestID string, expect types.RequestStatus, st *types.RequestState) (bool, error)
	Query(requestID string) (*types.Query, error)
	SaveQuery(requestID string, q *types.Query) error

	EventSubscriptionState(requestID string) (*types.EventSubscriptionState, error)
	SaveEventSubscriptionState(requestID string, st *types.EventSubscriptionState) error
	DeleteEventSubscriptionState(requestID string) error
	EventSubscription(requestID string) (*types.EventSubscription, error)
	SaveEventSubscription(requestID string, es *types.EventSubscription) error
	DeleteEventSubscription(requestID string) error

	EventStates(requestID string) (*types.EventStates, error)
	SaveEventStates(requestID string, st *types.EventStates) error
	PrependEventState(requestID string, ev types.EventState) error
	UpdateEventStateStatus(requestID, eventID string, status types.RequestStatus, message string) error

	SATPSession(sessionID string) (*types.SATPSession, error)
	SaveSATPSession(sessionID string, sess *types.SATPSession) error

	ScanPrefix(prefix string) (map[string][]byte, error)
	Has(key string) (bool, error)
	Close() error
}
