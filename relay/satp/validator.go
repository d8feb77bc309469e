package satp

import (
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
)

// Validator is the pluggable predicate set applied to every inbound
// gateway message. Deployments supply signature verification against
// their PKI; the relay core only enforces the hash chain.
type Validator interface {
	// ValidateSignature checks the client or server signature on the
	// header. The core treats signatures as opaque.
	ValidateSignature(header *types.SATPHeader) error
	// ValidateHashChain checks that the message extends the session's
	// recorded chain.
	ValidateHashChain(session *types.SATPSession, header *types.SATPHeader) error
}

// ChainValidator enforces the hash chain and accepts any signature.
type ChainValidator struct{}

// ValidateSignature accepts all signatures; deployments replace this
// with PKI-backed verification.
func (ChainValidator) ValidateSignature(_ *types.SATPHeader) error {
	return nil
}

// ValidateHashChain requires hash_prev_message to equal the hash of
// the last message recorded for the session.
func (ChainValidator) ValidateHashChain(session *types.SATPSession, header *types.SATPHeader) error {
	if header.HashPrevMessage != session.HashPrevMessage {
		return errors.Wrapf(types.ErrProtocol,
			"session %s: hash chain mismatch, got %q want %q",
			session.SessionID, header.HashPrevMessage, session.HashPrevMessage)
	}
	return nil
}
