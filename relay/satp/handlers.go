package satp

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/pkg/errors"
)

// Canonical message type identifiers carried in headers.
const (
	msgTransferProposalClaims  = "urn:satp:msg:transfer-proposal-claims"
	msgTransferProposalReceipt = "urn:satp:msg:transfer-proposal-receipt"
	msgTransferCommence        = "urn:satp:msg:transfer-commence"
	msgAckCommence             = "urn:satp:msg:ack-commence"
	msgLockAssertion           = "urn:satp:msg:lock-assertion"
	msgLockAssertionReceipt    = "urn:satp:msg:lock-assertion-receipt"
	msgCommitPrepare           = "urn:satp:msg:commit-prepare"
	msgCommitReady             = "urn:satp:msg:commit-ready"
	msgCommitFinalAssertion    = "urn:satp:msg:commit-final-assertion"
	msgAckFinalReceipt         = "urn:satp:msg:ack-final-receipt"
	msgTransferCompleted       = "urn:satp:msg:transfer-completed"
)

// --- sender-side outbound steps ---

func (s *Service) sendProposalClaims(sess *types.SATPSession, req *types.TransferRequest) {
	msg := &types.TransferProposalClaims{
		Header:             s.header(sess, msgTransferProposalClaims),
		AssetProfileID:     req.AssetProfileID,
		AssetID:            req.AssetID,
		SenderGatewayID:    s.cfg.LocalName(),
		RecipientGatewayID: req.RecipientRelay,
		SenderNetworkID:    req.SenderNetworkID,
		RecipientNetworkID: req.RecipientNetworkID,
		BeneficiaryPubkey:  req.BeneficiaryPubkey,
		OriginatorPubkey:   req.OriginatorPubkey,
	}
	s.emit(sess, msg, types.PhaseProposalSent, func(c wire.SATPClient) (*types.Ack, error) {
		return c.TransferProposalClaims(s.ctx, msg)
	})
}

// --- Stage 1: negotiation ---

// TransferProposalClaims opens a session on the receiver gateway and
// answers with a proposal receipt.
func (s *Service) TransferProposalClaims(ctx context.Context, in *types.TransferProposalClaims) (*types.Ack, error) {
	h := in.Header
	if h.SessionID == "" {
		return protocolAck("", errors.Wrap(types.ErrProtocol, "proposal claims: missing session id"))
	}
	if ok, err := s.localDB.Has("satp_" + h.SessionID); err != nil {
		return nil, err
	} else if ok {
		return protocolAck(h.SessionID, errors.Wrapf(types.ErrProtocol, "session %s already exists", h.SessionID))
	}
	sess := &types.SATPSession{
		SessionID:         h.SessionID,
		TransferContextID: h.TransferContextID,
		Role:              types.RoleReceiver,
		Phase:             types.PhaseInit,
		CounterpartyRelay: in.SenderGatewayID,
		NetworkID:         in.RecipientNetworkID,
		AssetProfileID:    in.AssetProfileID,
		ClientPubkey:      h.ClientIdentityPubkey,
	}
	if _, err := s.cfg.GetPeerRelay(sess.CounterpartyRelay); err != nil {
		return protocolAck(h.SessionID, err)
	}
	if err := s.validate(sess, &h); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(h.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseProposalSent); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.TransferProposalReceipt{
			Header:         s.header(sess, msgTransferProposalReceipt),
			AssetProfileID: sess.AssetProfileID,
		}
		s.emit(sess, msg, types.PhaseProposalAcked, func(c wire.SATPClient) (*types.Ack, error) {
			return c.TransferProposalReceipt(s.ctx, msg)
		})
	}()
	log.WithField("sessionID", h.SessionID).Info("Accepted transfer proposal")
	return okAck(h.SessionID)
}

// TransferProposalReceipt advances the sender and fires
// TransferCommence.
func (s *Service) TransferProposalReceipt(ctx context.Context, in *types.TransferProposalReceipt) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleSender, types.PhaseProposalSent)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	hashClaims := sess.HashPrevMessage
	if err := s.absorb(sess, in, types.PhaseProposalAcked); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.TransferCommence{
			Header:     s.header(sess, msgTransferCommence),
			HashClaims: hashClaims,
		}
		s.emit(sess, msg, types.PhaseCommenceSent, func(c wire.SATPClient) (*types.Ack, error) {
			return c.TransferCommence(s.ctx, msg)
		})
	}()
	return okAck(sess.SessionID)
}

// TransferCommence advances the receiver and fires AckCommence.
func (s *Service) TransferCommence(ctx context.Context, in *types.TransferCommence) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleReceiver, types.PhaseProposalAcked)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCommenceSent); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.AckCommence{Header: s.header(sess, msgAckCommence)}
		s.emit(sess, msg, types.PhaseCommenceAcked, func(c wire.SATPClient) (*types.Ack, error) {
			return c.AckCommence(s.ctx, msg)
		})
	}()
	return okAck(sess.SessionID)
}

// AckCommence closes stage 1 on the sender and asks the driver to lock
// the asset; the lock outcome arrives later via SendAssetStatus.
func (s *Service) AckCommence(ctx context.Context, in *types.AckCommence) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleSender, types.PhaseCommenceSent)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCommenceAcked); err != nil {
		return nil, err
	}
	go s.driveSideEffect(sess, func() error {
		return s.drivers.PerformLock(s.ctx, sess.NetworkID, sess.SessionID)
	})
	return okAck(sess.SessionID)
}

// driveSideEffect runs a driver call whose success is reported
// asynchronously through SendAssetStatus; only the failure path acts
// here.
func (s *Service) driveSideEffect(sess *types.SATPSession, call func() error) {
	if err := call(); err != nil {
		fresh, lerr := s.localDB.SATPSession(sess.SessionID)
		if lerr != nil {
			fresh = sess
		}
		s.fail(fresh, err.Error())
	}
}

// SendAssetStatus is the local driver's report of a completed ledger
// side-effect. It is not part of the gateway hash chain; it gates the
// next outbound gateway message.
func (s *Service) SendAssetStatus(ctx context.Context, in *types.SendAssetStatus) (*types.Ack, error) {
	if in.Header.SessionID == "" {
		return protocolAck("", errors.Wrap(types.ErrProtocol, "asset status: missing session id"))
	}
	sess, err := s.localDB.SATPSession(in.Header.SessionID)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if sess.Phase == types.PhaseFailed {
		return protocolAck(sess.SessionID, errors.Wrapf(types.ErrProtocol, "session %s: already failed", sess.SessionID))
	}
	switch {
	case sess.Role == types.RoleSender && in.Status == StatusLocked && sess.Phase == types.PhaseCommenceAcked:
		go func() {
			msg := &types.LockAssertion{Header: s.header(sess, msgLockAssertion)}
			s.emit(sess, msg, types.PhaseLockAsserted, func(c wire.SATPClient) (*types.Ack, error) {
				return c.LockAssertion(s.ctx, msg)
			})
		}()
	case sess.Role == types.RoleReceiver && in.Status == StatusCreated && sess.Phase == types.PhaseCommitPrepared:
		go func() {
			msg := &types.CommitReady{Header: s.header(sess, msgCommitReady)}
			s.emit(sess, msg, types.PhaseCommitReady, func(c wire.SATPClient) (*types.Ack, error) {
				return c.CommitReady(s.ctx, msg)
			})
		}()
	case sess.Role == types.RoleSender && in.Status == StatusExtinguished && sess.Phase == types.PhaseCommitReady:
		go func() {
			msg := &types.CommitFinalAssertion{Header: s.header(sess, msgCommitFinalAssertion)}
			s.emit(sess, msg, types.PhaseCommitFinalAsserted, func(c wire.SATPClient) (*types.Ack, error) {
				return c.CommitFinalAssertion(s.ctx, msg)
			})
		}()
	case sess.Role == types.RoleReceiver && in.Status == StatusFinalized && sess.Phase == types.PhaseCommitFinalAsserted:
		go func() {
			msg := &types.AckFinalReceipt{Header: s.header(sess, msgAckFinalReceipt)}
			s.emit(sess, msg, types.PhaseFinalAcked, func(c wire.SATPClient) (*types.Ack, error) {
				return c.AckFinalReceipt(s.ctx, msg)
			})
		}()
	default:
		return protocolAck(sess.SessionID, errors.Wrapf(types.ErrProtocol,
			"session %s: unexpected asset status %q for role %s at phase %s",
			sess.SessionID, in.Status, sess.Role, sess.Phase))
	}
	return okAck(sess.SessionID)
}

// --- Stage 2: lock ---

// LockAssertion advances the receiver and fires the receipt.
func (s *Service) LockAssertion(ctx context.Context, in *types.LockAssertion) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleReceiver, types.PhaseCommenceAcked)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseLockAsserted); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.LockAssertionReceipt{Header: s.header(sess, msgLockAssertionReceipt)}
		s.emit(sess, msg, types.PhaseLockAcked, func(c wire.SATPClient) (*types.Ack, error) {
			return c.LockAssertionReceipt(s.ctx, msg)
		})
	}()
	return okAck(sess.SessionID)
}

// LockAssertionReceipt advances the sender into the commit stage.
func (s *Service) LockAssertionReceipt(ctx context.Context, in *types.LockAssertionReceipt) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleSender, types.PhaseLockAsserted)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseLockAcked); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.CommitPrepare{Header: s.header(sess, msgCommitPrepare)}
		s.emit(sess, msg, types.PhaseCommitPrepared, func(c wire.SATPClient) (*types.Ack, error) {
			return c.CommitPrepare(s.ctx, msg)
		})
	}()
	return okAck(sess.SessionID)
}

// --- Stage 3: commit ---

// CommitPrepare advances the receiver and asks its driver to create
// the asset.
func (s *Service) CommitPrepare(ctx context.Context, in *types.CommitPrepare) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleReceiver, types.PhaseLockAcked)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCommitPrepared); err != nil {
		return nil, err
	}
	go s.driveSideEffect(sess, func() error {
		return s.drivers.CreateAsset(s.ctx, sess.NetworkID, sess.SessionID)
	})
	return okAck(sess.SessionID)
}

// CommitReady advances the sender and asks its driver to extinguish
// the source asset.
func (s *Service) CommitReady(ctx context.Context, in *types.CommitReady) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleSender, types.PhaseCommitPrepared)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCommitReady); err != nil {
		return nil, err
	}
	go s.driveSideEffect(sess, func() error {
		return s.drivers.Extinguish(s.ctx, sess.NetworkID, sess.SessionID)
	})
	return okAck(sess.SessionID)
}

// CommitFinalAssertion advances the receiver and asks its driver to
// assign the asset to the beneficiary.
func (s *Service) CommitFinalAssertion(ctx context.Context, in *types.CommitFinalAssertion) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleReceiver, types.PhaseCommitReady)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCommitFinalAsserted); err != nil {
		return nil, err
	}
	go s.driveSideEffect(sess, func() error {
		return s.drivers.AssignAsset(s.ctx, sess.NetworkID, sess.SessionID)
	})
	return okAck(sess.SessionID)
}

// AckFinalReceipt advances the sender and broadcasts completion.
func (s *Service) AckFinalReceipt(ctx context.Context, in *types.AckFinalReceipt) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleSender, types.PhaseCommitFinalAsserted)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseFinalAcked); err != nil {
		return nil, err
	}
	go func() {
		msg := &types.TransferCompleted{Header: s.header(sess, msgTransferCompleted)}
		s.emit(sess, msg, types.PhaseCompleted, func(c wire.SATPClient) (*types.Ack, error) {
			return c.TransferCompleted(s.ctx, msg)
		})
	}()
	return okAck(sess.SessionID)
}

// TransferCompleted closes the session on the receiver.
func (s *Service) TransferCompleted(ctx context.Context, in *types.TransferCompleted) (*types.Ack, error) {
	sess, err := s.session(in.Header.SessionID, types.RoleReceiver, types.PhaseFinalAcked)
	if err != nil {
		return protocolAck(in.Header.SessionID, err)
	}
	if err := s.validate(sess, &in.Header); err != nil {
		s.fail(sess, err.Error())
		return protocolAck(sess.SessionID, err)
	}
	if err := s.absorb(sess, in, types.PhaseCompleted); err != nil {
		return nil, err
	}
	log.WithField("sessionID", sess.SessionID).Info("Transfer completed")
	return okAck(sess.SessionID)
}
