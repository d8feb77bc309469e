package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Store and service code wraps these with pkg/errors so
// callers can classify failures with errors.Is.
var (
	// ErrMalformed marks unparseable input: a bad address or a message
	// missing a required field.
	ErrMalformed = errors.New("malformed input")
	// ErrNotFound marks a store miss or an unknown network, relay or
	// driver name.
	ErrNotFound = errors.New("not found")
	// ErrDecode marks a stored value that exists but cannot be
	// deserialized; distinct from ErrNotFound.
	ErrDecode = errors.New("undecodable record")
	// ErrTransport marks an unreachable peer or driver.
	ErrTransport = errors.New("transport failure")
	// ErrPeer marks a non-OK ack from a remote relay.
	ErrPeer = errors.New("peer error")
	// ErrProtocol marks an illegal state machine transition or a
	// message that violates protocol expectations.
	ErrProtocol = errors.New("protocol violation")
	// ErrStorage marks an underlying KV failure.
	ErrStorage = errors.New("storage failure")
	// ErrTimeout marks a deadline hit; treated like an error ack.
	ErrTimeout = errors.New("deadline exceeded")
)

// DriverError is a non-OK ack from a driver, carrying the driver's
// message verbatim.
type DriverError struct {
	Message string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error: %s", e.Message)
}

// NewDriverError converts an error ack into a typed driver error.
func NewDriverError(a *Ack) error {
	if a == nil {
		return &DriverError{Message: "empty driver ack"}
	}
	return &DriverError{Message: a.Message}
}
