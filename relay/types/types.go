// Package types holds the record and message types exchanged between
// relays, drivers and client applications, together with the status
// vocabulary persisted in the relay stores. The msgpack struct tags are
// the single source of schema truth for both the wire and the stores.
package types

// AckStatus is the protocol-level outcome of a unary call.
type AckStatus string

// Ack statuses.
const (
	AckOK    AckStatus = "OK"
	AckError AckStatus = "ERROR"
)

// Ack is returned by every unary endpoint on relays and drivers. A
// transport-level error is reserved for transport faults; application
// failures travel as AckError with a human-readable message.
type Ack struct {
	Status    AckStatus `msgpack:"status"`
	RequestID string    `msgpack:"request_id"`
	Message   string    `msgpack:"message"`
}

// OK reports whether the ack carries a positive status.
func (a *Ack) OK() bool {
	return a != nil && a.Status == AckOK
}

// RequestStatus is the lifecycle state of a relayed request.
type RequestStatus string

// Request statuses. Completed, Error and Deleted are terminal;
// EventWritten and EventWriteError are terminal per event entry.
const (
	RequestPendingAck      RequestStatus = "PENDING_ACK"
	RequestPending         RequestStatus = "PENDING"
	RequestCompleted       RequestStatus = "COMPLETED"
	RequestError           RequestStatus = "ERROR"
	RequestDeleted         RequestStatus = "DELETED"
	RequestEventReceived   RequestStatus = "EVENT_RECEIVED"
	RequestEventWritten    RequestStatus = "EVENT_WRITTEN"
	RequestEventWriteError RequestStatus = "EVENT_WRITE_ERROR"
)

// Meta describes the provenance of a View.
type Meta struct {
	ProofType           string `msgpack:"proof_type"`
	Protocol            string `msgpack:"protocol"`
	SerializationFormat string `msgpack:"serialization_format"`
	Timestamp           string `msgpack:"timestamp"`
}

// View is an opaque, signed ledger extract. The relay never interprets
// the data bytes; signatures inside are verified by drivers and apps.
type View struct {
	Meta Meta   `msgpack:"meta"`
	Data []byte `msgpack:"data"`
}

// RequestState is the polled record for a request originated on this
// relay. Exactly one of View and ErrorMessage is meaningful once the
// status is terminal.
type RequestState struct {
	RequestID    string        `msgpack:"request_id"`
	Status       RequestStatus `msgpack:"status"`
	View         *View         `msgpack:"view"`
	ErrorMessage string        `msgpack:"error_message"`
}

// ViewPayload carries either a View or an error string back through the
// relay pipeline, keyed by the originating request id.
type ViewPayload struct {
	RequestID    string `msgpack:"request_id"`
	View         *View  `msgpack:"view"`
	ErrorMessage string `msgpack:"error_message"`
}

// Query is the cross-relay form of a state request. Immutable once
// persisted on the receiving relay.
type Query struct {
	Address            string   `msgpack:"address"`
	Policy             []string `msgpack:"policy"`
	RequestingRelay    string   `msgpack:"requesting_relay"`
	RequestingNetwork  string   `msgpack:"requesting_network"`
	RequestingOrg      string   `msgpack:"requesting_org"`
	Certificate        string   `msgpack:"certificate"`
	RequestorSignature string   `msgpack:"requestor_signature"`
	Nonce              string   `msgpack:"nonce"`
	RequestID          string   `msgpack:"request_id"`
	Confidential       bool     `msgpack:"confidential"`
}

// NetworkQuery is the client-facing form of a state request, before the
// relay stamps its own identity and request id onto it.
type NetworkQuery struct {
	Address            string   `msgpack:"address"`
	Policy             []string `msgpack:"policy"`
	RequestingNetwork  string   `msgpack:"requesting_network"`
	RequestingOrg      string   `msgpack:"requesting_org"`
	Certificate        string   `msgpack:"certificate"`
	RequestorSignature string   `msgpack:"requestor_signature"`
	Nonce              string   `msgpack:"nonce"`
	Confidential       bool     `msgpack:"confidential"`
}

// GetStateMessage polls a request by id.
type GetStateMessage struct {
	RequestID string `msgpack:"request_id"`
}

// RelayDatabase is the debug dump of a relay's stores.
type RelayDatabase struct {
	Pairs map[string]string `msgpack:"pairs"`
}
