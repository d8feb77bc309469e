// Package eventsubscribe implements the peer-facing EventSubscribe
// service: the source relay persists inbound subscriptions and drives
// its driver; the originating relay folds returned statuses into its
// subscription records.
package eventsubscribe

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/address"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "eventsubscribe")

// Config holds the server's dependencies.
type Config struct {
	RemoteDB      dbiface.Store
	Drivers       iface.DriverCaller
	Peers         iface.PeerCaller
	Resolver      *config.Resolver
	Subscriptions *subscriptions.Manager
}

// Server implements wire.EventSubscribeServer.
type Server struct {
	ctx      context.Context
	remoteDB dbiface.Store
	drivers  iface.DriverCaller
	peers    iface.PeerCaller
	cfg      *config.Resolver
	subs     *subscriptions.Manager
}

// NewServer builds the EventSubscribe service.
func NewServer(ctx context.Context, cfg *Config) *Server {
	return &Server{
		ctx:      ctx,
		remoteDB: cfg.RemoteDB,
		drivers:  cfg.Drivers,
		peers:    cfg.Peers,
		cfg:      cfg.Resolver,
		subs:     cfg.Subscriptions,
	}
}

// SubscribeEvent persists a peer's subscription (or unsubscription),
// spawns the driver call and acknowledges immediately. Driver errors
// travel back to the origin through SendSubscriptionStatus, the same
// path a driver ack takes.
func (s *Server) SubscribeEvent(ctx context.Context, es *types.EventSubscription) (*types.Ack, error) {
	requestID := es.Query.RequestID
	if requestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "subscribe event: missing request id")
	}
	addr, err := address.Parse(es.Query.Address)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: requestID, Message: err.Error()}, nil
	}
	if err := s.remoteDB.SaveEventSubscription(requestID, es); err != nil {
		return nil, err
	}
	go s.driveSubscription(addr.NetworkID, requestID, es)
	log.WithFields(logrus.Fields{
		"requestID": requestID,
		"relay":     es.Query.RequestingRelay,
		"operation": es.Operation,
	}).Info("Accepted peer subscription request")
	return &types.Ack{Status: types.AckOK, RequestID: requestID}, nil
}

func (s *Server) driveSubscription(networkID, requestID string, es *types.EventSubscription) {
	if err := s.drivers.SubscribeEvent(s.ctx, networkID, es); err != nil {
		ack := &types.Ack{Status: types.AckError, RequestID: requestID, Message: err.Error()}
		if _, serr := s.SendDriverSubscriptionStatus(s.ctx, ack); serr != nil {
			log.WithError(serr).WithField("requestID", requestID).Error("Could not propagate driver error")
		}
	}
}

// SendDriverSubscriptionStatus receives the driver's asynchronous ack
// on the source relay and forwards it to the originating relay. An
// acknowledged unsubscribe removes the stored subscription.
func (s *Server) SendDriverSubscriptionStatus(ctx context.Context, ack *types.Ack) (*types.Ack, error) {
	if ack.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "driver subscription status: missing request id")
	}
	es, err := s.remoteDB.EventSubscription(ack.RequestID)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: ack.RequestID, Message: err.Error()}, nil
	}
	loc, err := s.cfg.GetPeerRelay(es.Query.RequestingRelay)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: ack.RequestID, Message: err.Error()}, nil
	}
	if es.Operation == types.OperationUnsubscribe && ack.OK() {
		if err := s.remoteDB.DeleteEventSubscription(ack.RequestID); err != nil {
			log.WithError(err).WithField("requestID", ack.RequestID).Error("Could not remove subscription record")
		}
	}
	go func() {
		if _, err := s.peers.SendSubscriptionStatus(s.ctx, loc, ack); err != nil {
			log.WithError(err).WithField("requestID", ack.RequestID).Error("Could not return status to origin relay")
		}
	}()
	return &types.Ack{Status: types.AckOK, RequestID: ack.RequestID}, nil
}

// SendSubscriptionStatus runs on the originating relay and advances
// the subscription record through the transition table.
func (s *Server) SendSubscriptionStatus(ctx context.Context, ack *types.Ack) (*types.Ack, error) {
	if ack.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "subscription status: missing request id")
	}
	if err := s.subs.UpdateSubscriptionStatus(ack.RequestID, ack); err != nil {
		return &types.Ack{Status: types.AckError, RequestID: ack.RequestID, Message: err.Error()}, nil
	}
	return &types.Ack{Status: types.AckOK, RequestID: ack.RequestID}, nil
}
