// Package subscriptions collapses multiple client subscriptions with
// the same (matcher, query) onto a single upstream subscription, and
// fans received event payloads back out to every publication target of
// the canonical record.
package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/address"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "subscriptions")

// Manager owns the subscription lifecycle on the originating relay.
// All mutations go through the local store; the canonical record is
// referenced by request id only, never by object reference.
type Manager struct {
	ctx        context.Context
	localDB    dbiface.Store
	drivers    iface.DriverCaller
	peers      iface.PeerCaller
	cfg        *config.Resolver
	classifier *Classifier
	httpClient *http.Client

	// mu serializes read-modify-write of subscription records; acks,
	// unsubscribes and duplicate folds can target the same canonical
	// record concurrently.
	mu sync.Mutex
}

// NewManager builds the subscription manager.
func NewManager(ctx context.Context, localDB dbiface.Store, drivers iface.DriverCaller, peers iface.PeerCaller, cfg *config.Resolver) *Manager {
	return &Manager{
		ctx:        ctx,
		localDB:    localDB,
		drivers:    drivers,
		peers:      peers,
		cfg:        cfg,
		classifier: NewClassifier(cfg.DriverErrorConstants()),
		httpClient: http.DefaultClient,
	}
}

// Subscribe records a new subscription as SubscribePendingAck and
// dispatches it upstream in the background. The returned ack carries
// the fresh request id; the client polls for the outcome.
func (m *Manager) Subscribe(ctx context.Context, req *types.NetworkEventSubscription) (*types.Ack, error) {
	requestID := uuid.NewString()
	addr, err := address.Parse(req.Address)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: requestID, Message: err.Error()}, nil
	}

	query := types.Query{
		Address:            req.Address,
		RequestingRelay:    m.cfg.LocalName(),
		RequestingNetwork:  req.RequestingNetwork,
		RequestingOrg:      req.RequestingOrg,
		Certificate:        req.Certificate,
		RequestorSignature: req.RequestorSignature,
		Nonce:              req.Nonce,
		RequestID:          requestID,
		Confidential:       req.Confidential,
	}
	// A driver-context target needs a driver-signed query so the source
	// network can authenticate the subscriber.
	if dc := req.EventPublicationSpec.DriverContext; dc != nil {
		signed, err := m.drivers.SignEventSubscription(ctx, dc.DriverID, &types.EventSubscription{
			EventMatcher: req.EventMatcher,
			Query:        query,
			Operation:    types.OperationSubscribe,
		})
		if err != nil {
			return &types.Ack{Status: types.AckError, RequestID: requestID, Message: err.Error()}, nil
		}
		signed.Address = req.Address
		signed.RequestingRelay = m.cfg.LocalName()
		signed.RequestID = requestID
		query = *signed
	}

	state := &types.EventSubscriptionState{
		RequestID:             requestID,
		PublishingRequestID:   "",
		Status:                types.SubscribePendingAck,
		EventMatcher:          req.EventMatcher,
		Query:                 query,
		EventPublicationSpecs: []types.EventPublication{req.EventPublicationSpec},
	}
	if err := m.localDB.SaveEventSubscriptionState(requestID, state); err != nil {
		return nil, err
	}

	sub := &types.EventSubscription{
		EventMatcher: req.EventMatcher,
		Query:        query,
		Operation:    types.OperationSubscribe,
	}
	loc := m.cfg.GetPeerRelayByAddress(addr.Location.Hostname, addr.Location.Port)
	go m.dispatch(requestID, loc, sub)

	return &types.Ack{Status: types.AckOK, RequestID: requestID}, nil
}

// dispatch forwards a subscription operation to the source relay and
// folds the synchronous peer ack into the stored state. The driver's
// verdict arrives later through SendSubscriptionStatus.
func (m *Manager) dispatch(requestID string, loc config.Location, sub *types.EventSubscription) {
	ack, err := m.peers.SubscribeEvent(m.ctx, loc, sub)
	if err != nil {
		m.markError(requestID, err.Error())
		return
	}
	ack.RequestID = requestID
	if err := m.UpdateSubscriptionStatus(requestID, ack); err != nil {
		log.WithError(err).WithField("requestID", requestID).Error("Could not record subscription ack")
	}
}

func (m *Manager) markError(requestID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.localDB.EventSubscriptionState(requestID)
	if err != nil {
		log.WithError(err).WithField("requestID", requestID).Error("Could not load subscription state")
		return
	}
	st.Status = types.SubscriptionError
	st.Message = message
	if err := m.localDB.SaveEventSubscriptionState(requestID, st); err != nil {
		log.WithError(err).WithField("requestID", requestID).Error("Could not store subscription error")
	}
}

// UpdateSubscriptionStatus maps an ack onto the monotonic transition
// table: pending-ack advances to pending, pending to the terminal
// state for the operation in flight. Error acks are classified; a
// recognized duplicate folds this record into the canonical one.
func (m *Manager) UpdateSubscriptionStatus(requestID string, ack *types.Ack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.localDB.EventSubscriptionState(requestID)
	if err != nil {
		return err
	}
	if ack.OK() {
		switch st.Status {
		case types.SubscribePendingAck:
			st.Status = types.SubscribePending
		case types.SubscribePending:
			st.Status = types.Subscribed
			st.PublishingRequestID = st.RequestID
		case types.UnsubscribePendingAck:
			st.Status = types.UnsubscribePending
		case types.UnsubscribePending:
			st.Status = types.Unsubscribed
		default:
			return errors.Wrapf(types.ErrProtocol, "subscription %s: unexpected ack in state %s", requestID, st.Status)
		}
		return m.localDB.SaveEventSubscriptionState(requestID, st)
	}

	cls, canonicalID := m.classifier.Classify(ack.Message)
	if cls == ClassDuplicateSubscription && canonicalID != requestID {
		return m.recordDuplicate(st, canonicalID)
	}
	st.Status = types.SubscriptionError
	st.Message = ack.Message
	return m.localDB.SaveEventSubscriptionState(requestID, st)
}

// recordDuplicate points the new record at the canonical one and
// appends its publication specs to the canonical spec set.
func (m *Manager) recordDuplicate(st *types.EventSubscriptionState, canonicalID string) error {
	canonical, err := m.localDB.EventSubscriptionState(canonicalID)
	if err != nil {
		return errors.Wrapf(err, "duplicate of unknown canonical subscription %s", canonicalID)
	}
	changed := false
	for _, spec := range st.EventPublicationSpecs {
		if !canonical.HasSpec(spec) {
			canonical.EventPublicationSpecs = append(canonical.EventPublicationSpecs, spec)
			changed = true
		}
	}
	if changed {
		if err := m.localDB.SaveEventSubscriptionState(canonicalID, canonical); err != nil {
			return err
		}
	}
	st.Status = types.DuplicateQuerySubscribed
	st.PublishingRequestID = canonicalID
	return m.localDB.SaveEventSubscriptionState(st.RequestID, st)
}

// Unsubscribe removes one publication target. Only the removal of a
// canonical record's last target is dispatched upstream; everything
// else is local bookkeeping.
func (m *Manager) Unsubscribe(ctx context.Context, req *types.NetworkEventUnsubscription) (*types.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.localDB.EventSubscriptionState(req.RequestID)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: req.RequestID, Message: err.Error()}, nil
	}
	if !st.HasSpec(req.EventPublicationSpec) {
		return &types.Ack{Status: types.AckError, RequestID: req.RequestID, Message: "unknown event publication spec"}, nil
	}

	if st.Status == types.DuplicateQuerySubscribed {
		st.Status = types.Unsubscribed
		st.EventPublicationSpecs = removeSpec(st.EventPublicationSpecs, req.EventPublicationSpec)
		if err := m.localDB.SaveEventSubscriptionState(req.RequestID, st); err != nil {
			return nil, err
		}
		if err := m.removeFromCanonical(st.PublishingRequestID, req.EventPublicationSpec); err != nil {
			log.WithError(err).WithField("requestID", req.RequestID).Error("Could not update canonical subscription")
		}
		return &types.Ack{Status: types.AckOK, RequestID: req.RequestID}, nil
	}

	if len(st.EventPublicationSpecs) > 1 {
		st.EventPublicationSpecs = removeSpec(st.EventPublicationSpecs, req.EventPublicationSpec)
		if err := m.localDB.SaveEventSubscriptionState(req.RequestID, st); err != nil {
			return nil, err
		}
		return &types.Ack{Status: types.AckOK, RequestID: req.RequestID}, nil
	}

	// Last remaining target: tear down the upstream subscription.
	addr, err := address.Parse(st.Query.Address)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: req.RequestID, Message: err.Error()}, nil
	}
	st.Status = types.UnsubscribePendingAck
	if err := m.localDB.SaveEventSubscriptionState(req.RequestID, st); err != nil {
		return nil, err
	}
	sub := &types.EventSubscription{
		EventMatcher: st.EventMatcher,
		Query:        st.Query,
		Operation:    types.OperationUnsubscribe,
	}
	loc := m.cfg.GetPeerRelayByAddress(addr.Location.Hostname, addr.Location.Port)
	go m.dispatch(req.RequestID, loc, sub)
	return &types.Ack{Status: types.AckOK, RequestID: req.RequestID}, nil
}

func (m *Manager) removeFromCanonical(canonicalID string, spec types.EventPublication) error {
	canonical, err := m.localDB.EventSubscriptionState(canonicalID)
	if err != nil {
		return err
	}
	canonical.EventPublicationSpecs = removeSpec(canonical.EventPublicationSpecs, spec)
	return m.localDB.SaveEventSubscriptionState(canonicalID, canonical)
}

func removeSpec(specs []types.EventPublication, spec types.EventPublication) []types.EventPublication {
	out := specs[:0]
	for _, s := range specs {
		if !s.Equal(spec) {
			out = append(out, s)
		}
	}
	return out
}

// DeliverEvent fans an inbound event payload out to every publication
// target of the canonical subscription. One EventState is prepended
// per target; driver targets are updated in place once the driver
// write completes.
func (m *Manager) DeliverEvent(ctx context.Context, vp *types.ViewPayload) error {
	st, err := m.localDB.EventSubscriptionState(vp.RequestID)
	if err != nil {
		return err
	}
	status := types.RequestEventReceived
	if vp.View == nil {
		status = types.RequestError
	}
	for _, spec := range st.EventPublicationSpecs {
		eventID := uuid.NewString()
		ev := types.EventState{
			State: types.RequestState{
				RequestID:    vp.RequestID,
				Status:       status,
				View:         vp.View,
				ErrorMessage: vp.ErrorMessage,
			},
			EventID: eventID,
		}
		if err := m.localDB.PrependEventState(vp.RequestID, ev); err != nil {
			return err
		}
		switch {
		case spec.AppURL != "":
			go m.postPayload(spec.AppURL, vp)
		case spec.DriverContext != nil:
			go m.writeToDriver(vp, spec.DriverContext, eventID)
		}
	}
	return nil
}

// postPayload fires the payload at an application URL. Delivery is
// best-effort; the stored EventState keeps the status it already has.
func (m *Manager) postPayload(url string, vp *types.ViewPayload) {
	body, err := json.Marshal(vp)
	if err != nil {
		log.WithError(err).WithField("url", url).Error("Could not encode event payload")
		return
	}
	resp, err := m.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.WithError(err).WithField("url", url).Warn("Could not deliver event payload")
		return
	}
	resp.Body.Close()
}

func (m *Manager) writeToDriver(vp *types.ViewPayload, dc *types.ContractTransaction, eventID string) {
	err := m.drivers.WriteExternalState(m.ctx, &types.WriteExternalStateMessage{
		ViewPayload:   vp,
		DriverContext: dc,
	})
	newStatus := types.RequestEventWritten
	message := ""
	if err != nil {
		newStatus = types.RequestEventWriteError
		message = err.Error()
	}
	if err := m.localDB.UpdateEventStateStatus(vp.RequestID, eventID, newStatus, message); err != nil {
		log.WithError(err).WithField("eventID", eventID).Error("Could not update event state")
	}
}

// SetHTTPClient overrides the fan-out HTTP client, for tests.
func (m *Manager) SetHTTPClient(c *http.Client) {
	m.httpClient = c
}
