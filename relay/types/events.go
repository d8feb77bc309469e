package types

// SubscriptionStatus is the lifecycle state of an event subscription
// originated on this relay.
type SubscriptionStatus string

// Subscription statuses. Transitions are monotonic per operation:
// pending-ack, then pending, then a terminal state.
const (
	SubscribePendingAck      SubscriptionStatus = "SUBSCRIBE_PENDING_ACK"
	SubscribePending         SubscriptionStatus = "SUBSCRIBE_PENDING"
	Subscribed               SubscriptionStatus = "SUBSCRIBED"
	DuplicateQuerySubscribed SubscriptionStatus = "DUPLICATE_QUERY_SUBSCRIBED"
	UnsubscribePendingAck    SubscriptionStatus = "UNSUBSCRIBE_PENDING_ACK"
	UnsubscribePending       SubscriptionStatus = "UNSUBSCRIBE_PENDING"
	Unsubscribed             SubscriptionStatus = "UNSUBSCRIBED"
	SubscriptionError        SubscriptionStatus = "ERROR"
)

// EventMatcher selects the upstream ledger events a subscription is
// interested in. Two matchers are equal iff all fields are equal.
type EventMatcher struct {
	EventType             string `msgpack:"event_type"`
	EventClassID          string `msgpack:"event_class_id"`
	TransactionLedgerID   string `msgpack:"transaction_ledger_id"`
	TransactionContractID string `msgpack:"transaction_contract_id"`
	TransactionFunc       string `msgpack:"transaction_func"`
}

// Equal reports field-wise equality.
func (m EventMatcher) Equal(o EventMatcher) bool {
	return m == o
}

// ContractTransaction is the driver-context publication target: the
// relay asks a driver to write the event payload into a local contract.
type ContractTransaction struct {
	DriverID        string   `msgpack:"driver_id"`
	LedgerID        string   `msgpack:"ledger_id"`
	ContractID      string   `msgpack:"contract_id"`
	Func            string   `msgpack:"func"`
	Args            [][]byte `msgpack:"args"`
	ReplaceArgIndex uint64   `msgpack:"replace_arg_index"`
	Members         []string `msgpack:"members"`
}

// EventPublication is a single publication target: exactly one of
// AppURL and DriverContext is set. Targets are compared structurally
// for deduplication.
type EventPublication struct {
	AppURL        string               `msgpack:"app_url"`
	DriverContext *ContractTransaction `msgpack:"driver_context"`
}

// Equal reports structural equality of two publication targets.
func (p EventPublication) Equal(o EventPublication) bool {
	if p.AppURL != o.AppURL {
		return false
	}
	if (p.DriverContext == nil) != (o.DriverContext == nil) {
		return false
	}
	if p.DriverContext == nil {
		return true
	}
	a, b := p.DriverContext, o.DriverContext
	if a.DriverID != b.DriverID || a.LedgerID != b.LedgerID || a.ContractID != b.ContractID ||
		a.Func != b.Func || a.ReplaceArgIndex != b.ReplaceArgIndex {
		return false
	}
	if len(a.Args) != len(b.Args) || len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Args {
		if string(a.Args[i]) != string(b.Args[i]) {
			return false
		}
	}
	for i := range a.Members {
		if a.Members[i] != b.Members[i] {
			return false
		}
	}
	return true
}

// SubscriptionOperation distinguishes subscribe from unsubscribe on the
// cross-relay EventSubscription message.
type SubscriptionOperation string

// Subscription operations.
const (
	OperationSubscribe   SubscriptionOperation = "SUBSCRIBE"
	OperationUnsubscribe SubscriptionOperation = "UNSUBSCRIBE"
)

// EventSubscription is the cross-relay form of a subscription request,
// persisted on the receiving relay under event_sub_<request_id>.
type EventSubscription struct {
	EventMatcher EventMatcher          `msgpack:"event_matcher"`
	Query        Query                 `msgpack:"query"`
	Operation    SubscriptionOperation `msgpack:"operation"`
}

// EventSubscriptionState is the originating relay's record of a
// subscription. PublishingRequestID equals RequestID for the canonical
// subscription and points at the canonical record for duplicates.
type EventSubscriptionState struct {
	RequestID             string             `msgpack:"request_id"`
	PublishingRequestID   string             `msgpack:"publishing_request_id"`
	Status                SubscriptionStatus `msgpack:"status"`
	Message               string             `msgpack:"message"`
	EventMatcher          EventMatcher       `msgpack:"event_matcher"`
	Query                 Query              `msgpack:"query"`
	EventPublicationSpecs []EventPublication `msgpack:"event_publication_specs"`
}

// HasSpec reports whether the state already records the given
// publication target.
func (s *EventSubscriptionState) HasSpec(spec EventPublication) bool {
	for _, p := range s.EventPublicationSpecs {
		if p.Equal(spec) {
			return true
		}
	}
	return false
}

// EventState is one delivered event occurrence for one publication
// target.
type EventState struct {
	State   RequestState `msgpack:"state"`
	EventID string       `msgpack:"event_id"`
	Message string       `msgpack:"message"`
}

// EventStates accumulates delivered events under event_pub_<request_id>
// until the subscribing application drains them.
type EventStates struct {
	States []EventState `msgpack:"states"`
}

// NetworkEventSubscription is the client-facing subscription request.
type NetworkEventSubscription struct {
	EventMatcher         EventMatcher     `msgpack:"event_matcher"`
	Address              string           `msgpack:"address"`
	RequestingNetwork    string           `msgpack:"requesting_network"`
	RequestingOrg        string           `msgpack:"requesting_org"`
	Certificate          string           `msgpack:"certificate"`
	RequestorSignature   string           `msgpack:"requestor_signature"`
	Nonce                string           `msgpack:"nonce"`
	Confidential         bool             `msgpack:"confidential"`
	EventPublicationSpec EventPublication `msgpack:"event_publication_spec"`
}

// NetworkEventUnsubscription asks the relay to drop one publication
// target from an existing subscription.
type NetworkEventUnsubscription struct {
	RequestID            string           `msgpack:"request_id"`
	EventPublicationSpec EventPublication `msgpack:"event_publication_spec"`
}

// WriteExternalStateMessage asks a driver to write a received event
// payload into a local contract, per the subscription's driver
// context.
type WriteExternalStateMessage struct {
	ViewPayload   *ViewPayload         `msgpack:"view_payload"`
	DriverContext *ContractTransaction `msgpack:"driver_context"`
}
