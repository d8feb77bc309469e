package client

import (
	"context"
	"time"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/pkg/errors"
)

// PeerService is the pooled client to remote relays. It implements
// iface.PeerCaller.
type PeerService struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pool    *pool
	timeout time.Duration
}

// NewPeerService builds the peer relay client service.
func NewPeerService(ctx context.Context) (*PeerService, error) {
	p, err := newPool(DefaultDialTimeout)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &PeerService{
		ctx:     ctx,
		cancel:  cancel,
		pool:    p,
		timeout: DefaultCallTimeout,
	}, nil
}

// Start satisfies the service registry; connections are dialed lazily.
func (s *PeerService) Start() {
	log.Debug("Peer client service started")
}

// Stop closes all pooled peer connections.
func (s *PeerService) Stop() error {
	s.cancel()
	s.pool.close()
	return nil
}

// Status is healthy whenever the service is running.
func (s *PeerService) Status() error {
	return nil
}

func (s *PeerService) conn(ctx context.Context, loc config.Location) (wire.DataTransferClient, wire.EventSubscribeClient, wire.EventPublishClient, error) {
	cc, err := s.pool.get(ctx, loc)
	if err != nil {
		return nil, nil, nil, errors.Wrap(types.ErrTransport, err.Error())
	}
	return wire.NewDataTransferClient(cc), wire.NewEventSubscribeClient(cc), wire.NewEventPublishClient(cc), nil
}

func wrapTransport(ack *types.Ack, err error) (*types.Ack, error) {
	if err != nil {
		return nil, errors.Wrap(types.ErrTransport, err.Error())
	}
	return ack, nil
}

// RequestState forwards a state query to the remote relay.
func (s *PeerService) RequestState(ctx context.Context, loc config.Location, q *types.Query) (*types.Ack, error) {
	dt, _, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(dt.RequestState(ctx, q))
}

// SendState returns a view payload to the relay that originated the
// request.
func (s *PeerService) SendState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error) {
	dt, _, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(dt.SendState(ctx, vp))
}

// SendDriverState forwards a driver reply to a remote relay's
// DataTransfer surface.
func (s *PeerService) SendDriverState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error) {
	dt, _, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(dt.SendDriverState(ctx, vp))
}

// SubscribeEvent forwards an event subscription to the source relay.
func (s *PeerService) SubscribeEvent(ctx context.Context, loc config.Location, es *types.EventSubscription) (*types.Ack, error) {
	_, sub, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(sub.SubscribeEvent(ctx, es))
}

// SendSubscriptionStatus returns a subscription outcome to the
// originating relay.
func (s *PeerService) SendSubscriptionStatus(ctx context.Context, loc config.Location, ack *types.Ack) (*types.Ack, error) {
	_, sub, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(sub.SendSubscriptionStatus(ctx, ack))
}

// SendDriverSubscriptionStatus forwards a driver subscription ack to a
// remote relay.
func (s *PeerService) SendDriverSubscriptionStatus(ctx context.Context, loc config.Location, ack *types.Ack) (*types.Ack, error) {
	_, sub, _, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(sub.SendDriverSubscriptionStatus(ctx, ack))
}

// PublishState delivers an event payload to the subscribing relay's
// EventPublish surface.
func (s *PeerService) PublishState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error) {
	_, _, pub, err := s.conn(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wrapTransport(pub.SendState(ctx, vp))
}

// SATP returns a SATP client bound to the counterparty gateway.
func (s *PeerService) SATP(loc config.Location) (wire.SATPClient, error) {
	cc, err := s.pool.get(s.ctx, loc)
	if err != nil {
		return nil, errors.Wrap(types.ErrTransport, err.Error())
	}
	return wire.NewSATPClient(cc), nil
}
