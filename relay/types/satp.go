package types

// Phase is the position of a SATP session in the commitment protocol.
// Indices are ordered; a session's phase never decreases.
type Phase int

// SATP phases in protocol order. Failed is terminal and unordered with
// respect to the rest.
const (
	PhaseInit Phase = iota
	PhaseProposalSent
	PhaseProposalAcked
	PhaseCommenceSent
	PhaseCommenceAcked
	PhaseLockAsserted
	PhaseLockAcked
	PhaseCommitPrepared
	PhaseCommitReady
	PhaseCommitFinalAsserted
	PhaseFinalAcked
	PhaseCompleted
	PhaseFailed Phase = 99
)

var phaseNames = map[Phase]string{
	PhaseInit:                "Init",
	PhaseProposalSent:        "ProposalSent",
	PhaseProposalAcked:       "ProposalAcked",
	PhaseCommenceSent:        "CommenceSent",
	PhaseCommenceAcked:       "CommenceAcked",
	PhaseLockAsserted:        "LockAsserted",
	PhaseLockAcked:           "LockAcked",
	PhaseCommitPrepared:      "CommitPrepared",
	PhaseCommitReady:         "CommitReady",
	PhaseCommitFinalAsserted: "CommitFinalAsserted",
	PhaseFinalAcked:          "FinalAcked",
	PhaseCompleted:           "Completed",
	PhaseFailed:              "Failed",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return "Unknown"
}

// GatewayRole distinguishes the two sides of a transfer.
type GatewayRole string

// Gateway roles.
const (
	RoleSender   GatewayRole = "SENDER"
	RoleReceiver GatewayRole = "RECEIVER"
)

// SATPHeader is carried by every SATP message. Signatures and the hash
// chain are validated by pluggable predicates; the relay core treats
// both as opaque.
type SATPHeader struct {
	SessionID            string `msgpack:"session_id"`
	TransferContextID    string `msgpack:"transfer_context_id"`
	HashPrevMessage      string `msgpack:"hash_prev_message"`
	ClientIdentityPubkey string `msgpack:"client_identity_pubkey"`
	ServerIdentityPubkey string `msgpack:"server_identity_pubkey"`
	ClientSignature      string `msgpack:"client_signature"`
	ServerSignature      string `msgpack:"server_signature"`
	MessageType          string `msgpack:"message_type"`
	SequenceNumber       uint64 `msgpack:"sequence_number"`
}

// TransferProposalClaims opens a transfer. The recipient relay name is
// resolved through configuration on the sender side.
type TransferProposalClaims struct {
	Header              SATPHeader `msgpack:"header"`
	AssetProfileID      string     `msgpack:"asset_profile_id"`
	AssetID             string     `msgpack:"asset_id"`
	SenderGatewayID     string     `msgpack:"sender_gateway_id"`
	RecipientGatewayID  string     `msgpack:"recipient_gateway_id"`
	SenderNetworkID     string     `msgpack:"sender_network_id"`
	RecipientNetworkID  string     `msgpack:"recipient_network_id"`
	BeneficiaryPubkey   string     `msgpack:"beneficiary_pubkey"`
	OriginatorPubkey    string     `msgpack:"originator_pubkey"`
	VerifiedOriginator  bool       `msgpack:"verified_originator"`
	VerifiedBeneficiary bool       `msgpack:"verified_beneficiary"`
}

// TransferProposalReceipt acknowledges the proposal claims.
type TransferProposalReceipt struct {
	Header         SATPHeader `msgpack:"header"`
	AssetProfileID string     `msgpack:"asset_profile_id"`
}

// TransferCommence commits the sender to the proposed transfer.
type TransferCommence struct {
	Header       SATPHeader `msgpack:"header"`
	HashClaims   string     `msgpack:"hash_transfer_init_claims"`
	SenderDID    string     `msgpack:"sender_dsp_did"`
	RecipientDID string     `msgpack:"recipient_dsp_did"`
}

// AckCommence acknowledges TransferCommence.
type AckCommence struct {
	Header SATPHeader `msgpack:"header"`
}

// SendAssetStatus is the driver's asynchronous report of a completed
// ledger side-effect (Locked, Created, Extinguished, Finalized).
type SendAssetStatus struct {
	Header SATPHeader `msgpack:"header"`
	Status string     `msgpack:"status"`
}

// LockAssertion asserts the asset is locked on the sender ledger.
type LockAssertion struct {
	Header          SATPHeader `msgpack:"header"`
	LockAssertionID string     `msgpack:"lock_assertion_claim"`
	Format          string     `msgpack:"lock_assertion_format"`
	Expiration      uint64     `msgpack:"lock_assertion_expiration"`
}

// LockAssertionReceipt acknowledges LockAssertion.
type LockAssertionReceipt struct {
	Header SATPHeader `msgpack:"header"`
}

// CommitPrepare opens the commit stage.
type CommitPrepare struct {
	Header SATPHeader `msgpack:"header"`
}

// CommitReady reports the receiver-side asset has been created.
type CommitReady struct {
	Header SATPHeader `msgpack:"header"`
}

// CommitFinalAssertion reports the sender-side asset has been
// extinguished.
type CommitFinalAssertion struct {
	Header SATPHeader `msgpack:"header"`
}

// AckFinalReceipt reports the receiver-side asset assignment.
type AckFinalReceipt struct {
	Header SATPHeader `msgpack:"header"`
}

// TransferCompleted closes the session.
type TransferCompleted struct {
	Header SATPHeader `msgpack:"header"`
}

// PerformLockRequest and friends are the driver-facing SATP
// side-effect calls; the driver answers with an Ack and reports the
// ledger outcome later through SendAssetStatus.
type PerformLockRequest struct {
	SessionID string `msgpack:"session_id"`
}

// CreateAssetRequest asks the receiver driver to create the asset.
type CreateAssetRequest struct {
	SessionID string `msgpack:"session_id"`
}

// ExtinguishRequest asks the sender driver to extinguish the asset.
type ExtinguishRequest struct {
	SessionID string `msgpack:"session_id"`
}

// AssignAssetRequest asks the receiver driver to assign the asset.
type AssignAssetRequest struct {
	SessionID string `msgpack:"session_id"`
}

// SATPSession is the per-gateway session record, persisted under
// satp_<session_id>.
type SATPSession struct {
	SessionID          string      `msgpack:"session_id"`
	TransferContextID  string      `msgpack:"transfer_context_id"`
	Role               GatewayRole `msgpack:"role"`
	Phase              Phase       `msgpack:"phase"`
	HashPrevMessage    string      `msgpack:"hash_prev_message"`
	ClientPubkey       string      `msgpack:"client_pubkey"`
	ServerPubkey       string      `msgpack:"server_pubkey"`
	CounterpartyRelay  string      `msgpack:"counterparty_relay"`
	NetworkID          string      `msgpack:"network_id"`
	AssetProfileID     string      `msgpack:"asset_profile_id"`
	ClientSequenceNum  uint64      `msgpack:"client_sequence_number"`
	ServerSequenceNum  uint64      `msgpack:"server_sequence_number"`
	FailureMessage     string      `msgpack:"failure_message"`
	HashProposalClaims string      `msgpack:"hash_proposal_claims"`
}

// TransferRequest is the sender-side entry point for a new transfer.
type TransferRequest struct {
	AssetProfileID     string `msgpack:"asset_profile_id"`
	AssetID            string `msgpack:"asset_id"`
	SenderNetworkID    string `msgpack:"sender_network_id"`
	RecipientNetworkID string `msgpack:"recipient_network_id"`
	RecipientRelay     string `msgpack:"recipient_relay"`
	BeneficiaryPubkey  string `msgpack:"beneficiary_pubkey"`
	OriginatorPubkey   string `msgpack:"originator_pubkey"`
}
