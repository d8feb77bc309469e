// Package satp implements the asset-transfer commitment protocol
// between a sender gateway relay and a receiver gateway relay. Every
// inbound message is validated, advances the session phase exactly
// once, and fires the next protocol step as a background task; the
// inbound ack never waits for downstream work.
package satp

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/client/iface"
	"github.com/dlt-interop/relay/relay/codec"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "satp")

var sessionsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_satp_sessions_terminal_total",
	Help: "Count of SATP sessions reaching a terminal phase.",
}, []string{"phase"})

// Asset status strings reported by drivers through SendAssetStatus.
const (
	StatusLocked       = "Locked"
	StatusCreated      = "Created"
	StatusExtinguished = "Extinguished"
	StatusFinalized    = "Finalized"
)

// Config holds the service dependencies.
type Config struct {
	LocalDB   dbiface.Store
	Drivers   iface.DriverCaller
	Peers     iface.PeerCaller
	Resolver  *config.Resolver
	Validator Validator
}

// Service implements wire.SATPServer for both gateway roles; the role
// is per session, so one relay can act as sender and receiver
// concurrently.
type Service struct {
	ctx       context.Context
	localDB   dbiface.Store
	drivers   iface.DriverCaller
	peers     iface.PeerCaller
	cfg       *config.Resolver
	validator Validator
}

// NewService builds the SATP gateway service. A nil validator gets the
// chain-only default.
func NewService(ctx context.Context, cfg *Config) *Service {
	v := cfg.Validator
	if v == nil {
		v = ChainValidator{}
	}
	return &Service{
		ctx:       ctx,
		localDB:   cfg.LocalDB,
		drivers:   cfg.Drivers,
		peers:     cfg.Peers,
		cfg:       cfg.Resolver,
		validator: v,
	}
}

// InitiateTransfer opens a new session in the sender role and fires
// the TransferProposalClaims at the recipient gateway. The ack carries
// the fresh session id.
func (s *Service) InitiateTransfer(ctx context.Context, req *types.TransferRequest) (*types.Ack, error) {
	if req.RecipientRelay == "" {
		return &types.Ack{Status: types.AckError, Message: "transfer request: missing recipient relay"}, nil
	}
	if _, err := s.cfg.GetPeerRelay(req.RecipientRelay); err != nil {
		return &types.Ack{Status: types.AckError, Message: err.Error()}, nil
	}
	sessionID := uuid.NewString()
	sess := &types.SATPSession{
		SessionID:         sessionID,
		TransferContextID: uuid.NewString(),
		Role:              types.RoleSender,
		Phase:             types.PhaseInit,
		CounterpartyRelay: req.RecipientRelay,
		NetworkID:         req.SenderNetworkID,
		AssetProfileID:    req.AssetProfileID,
	}
	if err := s.localDB.SaveSATPSession(sessionID, sess); err != nil {
		return nil, err
	}
	go s.sendProposalClaims(sess, req)
	log.WithFields(logrus.Fields{"sessionID": sessionID, "recipient": req.RecipientRelay}).Info("Initiated asset transfer")
	return &types.Ack{Status: types.AckOK, RequestID: sessionID}, nil
}

// session loads and checks a session for an inbound message: the
// session must exist, must not be failed, and must sit at exactly the
// expected phase. A session ahead of the expected phase is a replay
// and is rejected without disturbing the phase.
func (s *Service) session(sessionID string, role types.GatewayRole, expected types.Phase) (*types.SATPSession, error) {
	if sessionID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "missing session id")
	}
	sess, err := s.localDB.SATPSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Role != role {
		return nil, errors.Wrapf(types.ErrProtocol, "session %s: message for role %s arrived at role %s", sessionID, role, sess.Role)
	}
	if sess.Phase == types.PhaseFailed {
		return nil, errors.Wrapf(types.ErrProtocol, "session %s: already failed: %s", sessionID, sess.FailureMessage)
	}
	if sess.Phase != expected {
		return nil, errors.Wrapf(types.ErrProtocol, "session %s: message for phase %s arrived at phase %s", sessionID, expected, sess.Phase)
	}
	return sess, nil
}

// validate runs the pluggable predicates. Any failure is fatal for the
// session.
func (s *Service) validate(sess *types.SATPSession, header *types.SATPHeader) error {
	if err := s.validator.ValidateSignature(header); err != nil {
		return err
	}
	return s.validator.ValidateHashChain(sess, header)
}

// absorb records an inbound message into the hash chain and advances
// the phase.
func (s *Service) absorb(sess *types.SATPSession, msg interface{}, next types.Phase) error {
	h, err := codec.Hash(msg)
	if err != nil {
		return err
	}
	sess.HashPrevMessage = h
	sess.Phase = next
	if err := s.localDB.SaveSATPSession(sess.SessionID, sess); err != nil {
		return err
	}
	if next == types.PhaseCompleted {
		sessionsTerminal.WithLabelValues(next.String()).Inc()
	}
	return nil
}

// fail moves the session to the terminal Failed phase. Already-locked
// assets are not rolled back here; reconciliation is out-of-band.
func (s *Service) fail(sess *types.SATPSession, message string) {
	sess.Phase = types.PhaseFailed
	sess.FailureMessage = message
	if err := s.localDB.SaveSATPSession(sess.SessionID, sess); err != nil {
		log.WithError(err).WithField("sessionID", sess.SessionID).Error("Could not record failed session")
	}
	sessionsTerminal.WithLabelValues(types.PhaseFailed.String()).Inc()
	log.WithFields(logrus.Fields{"sessionID": sess.SessionID, "reason": message}).Warn("Transfer session failed")
}

// counterparty returns a SATP client bound to the session's peer
// gateway.
func (s *Service) counterparty(sess *types.SATPSession) (wire.SATPClient, error) {
	loc, err := s.cfg.GetPeerRelay(sess.CounterpartyRelay)
	if err != nil {
		return nil, err
	}
	return s.peers.SATP(loc)
}

// header stamps a fresh outbound header extending the session chain.
func (s *Service) header(sess *types.SATPSession, messageType string) types.SATPHeader {
	h := types.SATPHeader{
		SessionID:         sess.SessionID,
		TransferContextID: sess.TransferContextID,
		HashPrevMessage:   sess.HashPrevMessage,
		MessageType:       messageType,
	}
	if sess.Role == types.RoleSender {
		sess.ClientSequenceNum++
		h.SequenceNumber = sess.ClientSequenceNum
		h.ClientIdentityPubkey = sess.ClientPubkey
		h.ServerIdentityPubkey = sess.ServerPubkey
	} else {
		sess.ServerSequenceNum++
		h.SequenceNumber = sess.ServerSequenceNum
		h.ClientIdentityPubkey = sess.ClientPubkey
		h.ServerIdentityPubkey = sess.ServerPubkey
	}
	return h
}

// emit records an outbound message on the chain, advances the phase
// and dispatches it. Called from background tasks only.
func (s *Service) emit(sess *types.SATPSession, msg interface{}, next types.Phase, send func(wire.SATPClient) (*types.Ack, error)) {
	h, err := codec.Hash(msg)
	if err != nil {
		s.fail(sess, err.Error())
		return
	}
	sess.HashPrevMessage = h
	sess.Phase = next
	if err := s.localDB.SaveSATPSession(sess.SessionID, sess); err != nil {
		s.fail(sess, err.Error())
		return
	}
	if next == types.PhaseCompleted {
		sessionsTerminal.WithLabelValues(next.String()).Inc()
	}
	client, err := s.counterparty(sess)
	if err != nil {
		s.fail(sess, err.Error())
		return
	}
	ack, err := send(client)
	if err != nil {
		s.fail(sess, err.Error())
		return
	}
	if !ack.OK() {
		s.fail(sess, ack.Message)
	}
}

func protocolAck(sessionID string, err error) (*types.Ack, error) {
	return &types.Ack{Status: types.AckError, RequestID: sessionID, Message: err.Error()}, nil
}

func okAck(sessionID string) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK, RequestID: sessionID}, nil
}
