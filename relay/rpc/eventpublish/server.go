// Package eventpublish implements the peer-facing EventPublish
// service: the source relay forwards driver-emitted event payloads to
// the subscribing relay, where they fan out to every recorded
// publication target.
package eventpublish

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "eventpublish")

var eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "relay_events_delivered_total",
	Help: "Count of event payloads accepted for fan-out.",
})

// Config holds the server's dependencies.
type Config struct {
	RemoteDB      dbiface.Store
	Peers         iface.PeerCaller
	Resolver      *config.Resolver
	Subscriptions *subscriptions.Manager
}

// Server implements wire.EventPublishServer.
type Server struct {
	ctx      context.Context
	remoteDB dbiface.Store
	peers    iface.PeerCaller
	cfg      *config.Resolver
	subs     *subscriptions.Manager
}

// NewServer builds the EventPublish service.
func NewServer(ctx context.Context, cfg *Config) *Server {
	return &Server{
		ctx:      ctx,
		remoteDB: cfg.RemoteDB,
		peers:    cfg.Peers,
		cfg:      cfg.Resolver,
		subs:     cfg.Subscriptions,
	}
}

// SendDriverState runs on the source relay: the local driver delivers
// an event payload matching a stored subscription, which is forwarded
// to the subscribing relay.
func (s *Server) SendDriverState(ctx context.Context, vp *types.ViewPayload) (*types.Ack, error) {
	if vp.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "publish driver state: missing request id")
	}
	es, err := s.remoteDB.EventSubscription(vp.RequestID)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: vp.RequestID, Message: err.Error()}, nil
	}
	loc, err := s.cfg.GetPeerRelay(es.Query.RequestingRelay)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: vp.RequestID, Message: err.Error()}, nil
	}
	go func() {
		if _, err := s.peers.PublishState(s.ctx, loc, vp); err != nil {
			log.WithError(err).WithField("requestID", vp.RequestID).Error("Could not forward event to subscriber relay")
		}
	}()
	return &types.Ack{Status: types.AckOK, RequestID: vp.RequestID}, nil
}

// SendState runs on the destination relay and hands the payload to the
// subscription manager for fan-out.
func (s *Server) SendState(ctx context.Context, vp *types.ViewPayload) (*types.Ack, error) {
	if vp.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "publish state: missing request id")
	}
	if err := s.subs.DeliverEvent(ctx, vp); err != nil {
		return &types.Ack{Status: types.AckError, RequestID: vp.RequestID, Message: err.Error()}, nil
	}
	eventsDelivered.Inc()
	return &types.Ack{Status: types.AckOK, RequestID: vp.RequestID}, nil
}
