// Package network implements the client-facing Network service: local
// applications submit requests here and poll for the asynchronous
// outcome. Every submit returns immediately with a fresh request id;
// the cross-relay work happens in background tasks that write terminal
// state to the local store.
package network

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/address"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "network")

var requestsInitiated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "relay_requests_initiated_total",
	Help: "Count of data-sharing requests submitted by local clients.",
})

// Config holds the server's dependencies.
type Config struct {
	LocalDB       dbiface.Store
	RemoteDB      dbiface.Store
	Peers         iface.PeerCaller
	Resolver      *config.Resolver
	Subscriptions *subscriptions.Manager
}

// Server implements wire.NetworkServer.
type Server struct {
	ctx      context.Context
	localDB  dbiface.Store
	remoteDB dbiface.Store
	peers    iface.PeerCaller
	cfg      *config.Resolver
	subs     *subscriptions.Manager
}

// NewServer builds the Network service.
func NewServer(ctx context.Context, cfg *Config) *Server {
	return &Server{
		ctx:      ctx,
		localDB:  cfg.LocalDB,
		remoteDB: cfg.RemoteDB,
		peers:    cfg.Peers,
		cfg:      cfg.Resolver,
		subs:     cfg.Subscriptions,
	}
}

// RequestState records a pending request, spawns the cross-relay call
// and acknowledges the client immediately with the new request id.
func (s *Server) RequestState(ctx context.Context, req *types.NetworkQuery) (*types.Ack, error) {
	requestID := uuid.NewString()
	addr, err := address.Parse(req.Address)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: requestID, Message: err.Error()}, nil
	}
	if err := s.localDB.SaveRequestState(requestID, &types.RequestState{
		RequestID: requestID,
		Status:    types.RequestPendingAck,
	}); err != nil {
		return nil, err
	}
	query := &types.Query{
		Address:            req.Address,
		Policy:             req.Policy,
		RequestingRelay:    s.cfg.LocalName(),
		RequestingNetwork:  req.RequestingNetwork,
		RequestingOrg:      req.RequestingOrg,
		Certificate:        req.Certificate,
		RequestorSignature: req.RequestorSignature,
		Nonce:              req.Nonce,
		RequestID:          requestID,
		Confidential:       req.Confidential,
	}
	loc := s.cfg.GetPeerRelayByAddress(addr.Location.Hostname, addr.Location.Port)
	go s.forwardRequest(requestID, loc, query)
	requestsInitiated.Inc()
	log.WithFields(logrus.Fields{"requestID": requestID, "address": req.Address}).Info("Accepted state request")
	return &types.Ack{Status: types.AckOK, RequestID: requestID}, nil
}

// forwardRequest carries the request to the remote relay and folds the
// synchronous peer ack into the stored state. The view itself arrives
// later through DataTransfer.SendState and can land before the ack
// returns, so the fold only applies while the record still awaits it.
func (s *Server) forwardRequest(requestID string, loc config.Location, query *types.Query) {
	st := &types.RequestState{RequestID: requestID}
	ack, err := s.peers.RequestState(s.ctx, loc, query)
	switch {
	case err != nil:
		st.Status = types.RequestError
		st.ErrorMessage = err.Error()
	case !ack.OK():
		st.Status = types.RequestError
		st.ErrorMessage = ack.Message
	default:
		st.Status = types.RequestPending
	}
	written, err := s.localDB.SaveRequestStateIfStatus(requestID, types.RequestPendingAck, st)
	if err != nil {
		log.WithError(err).WithField("requestID", requestID).Error("Could not record request ack")
		return
	}
	if !written {
		log.WithField("requestID", requestID).Debug("Request advanced before the peer ack returned")
	}
}

// GetState returns the current request record. A terminal Completed or
// Error record is tombstoned after being returned, so re-polls observe
// Deleted. Clients must tolerate the at-least-once final read.
func (s *Server) GetState(ctx context.Context, req *types.GetStateMessage) (*types.RequestState, error) {
	st, err := s.localDB.RequestState(req.RequestID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, errors.Wrapf(types.ErrNotFound, "request %s", req.RequestID)
		}
		return nil, err
	}
	if st.Status == types.RequestCompleted || st.Status == types.RequestError {
		tombstone := &types.RequestState{RequestID: req.RequestID, Status: types.RequestDeleted}
		if err := s.localDB.SaveRequestState(req.RequestID, tombstone); err != nil {
			log.WithError(err).WithField("requestID", req.RequestID).Error("Could not tombstone request")
		}
	}
	return st, nil
}

// SubscribeEvent delegates to the subscription manager.
func (s *Server) SubscribeEvent(ctx context.Context, req *types.NetworkEventSubscription) (*types.Ack, error) {
	return s.subs.Subscribe(ctx, req)
}

// UnsubscribeEvent delegates to the subscription manager.
func (s *Server) UnsubscribeEvent(ctx context.Context, req *types.NetworkEventUnsubscription) (*types.Ack, error) {
	return s.subs.Unsubscribe(ctx, req)
}

// GetEventSubscriptionState returns the subscription record. A record
// in the Unsubscribed terminal state is removed on return.
func (s *Server) GetEventSubscriptionState(ctx context.Context, req *types.GetStateMessage) (*types.EventSubscriptionState, error) {
	st, err := s.localDB.EventSubscriptionState(req.RequestID)
	if err != nil {
		return nil, err
	}
	if st.Status == types.Unsubscribed {
		if err := s.localDB.DeleteEventSubscriptionState(req.RequestID); err != nil {
			log.WithError(err).WithField("requestID", req.RequestID).Error("Could not delete subscription record")
		}
	}
	return st, nil
}

// GetEventStates drains the delivered events for a subscription: the
// current list is returned and every contained entry is rewritten to
// Deleted so subsequent reads observe a stable tombstone.
func (s *Server) GetEventStates(ctx context.Context, req *types.GetStateMessage) (*types.EventStates, error) {
	st, err := s.localDB.EventStates(req.RequestID)
	if err != nil {
		return nil, err
	}
	if len(st.States) == 0 {
		return st, nil
	}
	tombstoned := &types.EventStates{States: make([]types.EventState, len(st.States))}
	copy(tombstoned.States, st.States)
	for i := range tombstoned.States {
		tombstoned.States[i].State.Status = types.RequestDeleted
	}
	if err := s.localDB.SaveEventStates(req.RequestID, tombstoned); err != nil {
		log.WithError(err).WithField("requestID", req.RequestID).Error("Could not tombstone event states")
	}
	return st, nil
}

// RequestDatabase dumps the keys of both stores, for debugging.
func (s *Server) RequestDatabase(ctx context.Context, _ *types.GetStateMessage) (*types.RelayDatabase, error) {
	pairs := make(map[string]string)
	local, err := s.localDB.ScanPrefix("")
	if err != nil {
		return nil, err
	}
	for k := range local {
		pairs["local/"+k] = "present"
	}
	remote, err := s.remoteDB.ScanPrefix("")
	if err != nil {
		return nil, err
	}
	for k := range remote {
		pairs["remote/"+k] = "present"
	}
	return &types.RelayDatabase{Pairs: pairs}, nil
}
