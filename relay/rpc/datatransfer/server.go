// Package datatransfer implements the peer-facing DataTransfer
// service. A receiving relay persists the inbound query and drives its
// local driver; the originating relay receives the view back through
// SendState and surfaces it to the polling client.
package datatransfer

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/address"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "datatransfer")

var requestsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_requests_resolved_total",
	Help: "Count of originated requests reaching a terminal state.",
}, []string{"status"})

// Config holds the server's dependencies.
type Config struct {
	LocalDB  dbiface.Store
	RemoteDB dbiface.Store
	Drivers  iface.DriverCaller
	Peers    iface.PeerCaller
	Resolver *config.Resolver
}

// Server implements wire.DataTransferServer.
type Server struct {
	ctx      context.Context
	localDB  dbiface.Store
	remoteDB dbiface.Store
	drivers  iface.DriverCaller
	peers    iface.PeerCaller
	cfg      *config.Resolver
}

// NewServer builds the DataTransfer service.
func NewServer(ctx context.Context, cfg *Config) *Server {
	return &Server{
		ctx:      ctx,
		localDB:  cfg.LocalDB,
		remoteDB: cfg.RemoteDB,
		drivers:  cfg.Drivers,
		peers:    cfg.Peers,
		cfg:      cfg.Resolver,
	}
}

// RequestState persists the peer's query, spawns the driver call and
// acknowledges immediately. A driver failure is re-expressed through
// the same SendDriverState path a real driver reply would take, so the
// origin relay observes a symmetric error.
func (s *Server) RequestState(ctx context.Context, q *types.Query) (*types.Ack, error) {
	if q.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "request state: missing request id")
	}
	addr, err := address.Parse(q.Address)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: q.RequestID, Message: err.Error()}, nil
	}
	if err := s.remoteDB.SaveQuery(q.RequestID, q); err != nil {
		return nil, err
	}
	go s.driveRequest(addr.NetworkID, q)
	log.WithFields(logrus.Fields{"requestID": q.RequestID, "relay": q.RequestingRelay}).Info("Accepted peer state request")
	return &types.Ack{Status: types.AckOK, RequestID: q.RequestID}, nil
}

func (s *Server) driveRequest(networkID string, q *types.Query) {
	if err := s.drivers.RequestDriverState(s.ctx, networkID, q); err != nil {
		vp := &types.ViewPayload{RequestID: q.RequestID, ErrorMessage: err.Error()}
		if _, serr := s.SendDriverState(s.ctx, vp); serr != nil {
			log.WithError(serr).WithField("requestID", q.RequestID).Error("Could not propagate driver error")
		}
	}
}

// SendDriverState receives the driver's asynchronous reply, looks up
// the stored query for the originating relay and forwards the payload
// there.
func (s *Server) SendDriverState(ctx context.Context, vp *types.ViewPayload) (*types.Ack, error) {
	if vp.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "send driver state: missing request id")
	}
	q, err := s.remoteDB.Query(vp.RequestID)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: vp.RequestID, Message: err.Error()}, nil
	}
	loc, err := s.cfg.GetPeerRelay(q.RequestingRelay)
	if err != nil {
		return &types.Ack{Status: types.AckError, RequestID: vp.RequestID, Message: err.Error()}, nil
	}
	go func() {
		if _, err := s.peers.SendState(s.ctx, loc, vp); err != nil {
			log.WithError(err).WithField("requestID", vp.RequestID).Error("Could not return state to origin relay")
		}
	}()
	return &types.Ack{Status: types.AckOK, RequestID: vp.RequestID}, nil
}

// SendState runs on the originating relay: the remote relay returns
// the view or error, which becomes the terminal record the client
// polls for.
func (s *Server) SendState(ctx context.Context, vp *types.ViewPayload) (*types.Ack, error) {
	if vp.RequestID == "" {
		return nil, errors.Wrap(types.ErrProtocol, "send state: missing request id")
	}
	st := &types.RequestState{RequestID: vp.RequestID}
	if vp.View != nil {
		st.Status = types.RequestCompleted
		st.View = vp.View
	} else {
		st.Status = types.RequestError
		st.ErrorMessage = vp.ErrorMessage
	}
	if err := s.localDB.SaveRequestState(vp.RequestID, st); err != nil {
		return nil, err
	}
	requestsResolved.WithLabelValues(string(st.Status)).Inc()
	log.WithFields(logrus.Fields{"requestID": vp.RequestID, "status": st.Status}).Info("Recorded terminal request state")
	return &types.Ack{Status: types.AckOK, RequestID: vp.RequestID}, nil
}
