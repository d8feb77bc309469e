package client

import (
	"context"
	"time"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/pkg/errors"
)

// DriverService is the pooled client to the relay's local drivers. It
// implements iface.DriverCaller.
type DriverService struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Resolver
	pool    *pool
	timeout time.Duration
}

// NewDriverService builds the driver client service.
func NewDriverService(ctx context.Context, cfg *config.Resolver) (*DriverService, error) {
	p, err := newPool(DefaultDialTimeout)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &DriverService{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		pool:    p,
		timeout: DefaultCallTimeout,
	}, nil
}

// Start satisfies the service registry; connections are dialed lazily.
func (s *DriverService) Start() {
	log.Debug("Driver client service started")
}

// Stop closes all pooled driver connections.
func (s *DriverService) Stop() error {
	s.cancel()
	s.pool.close()
	return nil
}

// Status is healthy whenever the service is running; individual dial
// failures surface per call.
func (s *DriverService) Status() error {
	return nil
}

func (s *DriverService) client(ctx context.Context, loc config.Location) (wire.DriverClient, error) {
	conn, err := s.pool.get(ctx, loc)
	if err != nil {
		return nil, errors.Wrap(types.ErrTransport, err.Error())
	}
	return wire.NewDriverClient(conn), nil
}

func (s *DriverService) networkClient(ctx context.Context, networkID string) (wire.DriverClient, error) {
	loc, err := s.cfg.GetDriver(networkID)
	if err != nil {
		return nil, err
	}
	return s.client(ctx, loc)
}

func checkAck(ack *types.Ack, err error) error {
	if err != nil {
		return errors.Wrap(types.ErrTransport, err.Error())
	}
	if !ack.OK() {
		return types.NewDriverError(ack)
	}
	return nil
}

// RequestDriverState asks the driver to fetch a ledger view; the
// driver replies asynchronously through DataTransfer.SendDriverState.
func (s *DriverService) RequestDriverState(ctx context.Context, networkID string, q *types.Query) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.RequestDriverState(ctx, q))
}

// SubscribeEvent registers an event subscription with the driver.
func (s *DriverService) SubscribeEvent(ctx context.Context, networkID string, es *types.EventSubscription) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.SubscribeEvent(ctx, es))
}

// SignEventSubscription asks the driver named by the publication
// spec to sign the subscription query so the remote network can verify
// the subscriber's identity.
func (s *DriverService) SignEventSubscription(ctx context.Context, driverID string, es *types.EventSubscription) (*types.Query, error) {
	loc, err := s.cfg.GetDriverByID(driverID)
	if err != nil {
		return nil, err
	}
	c, err := s.client(ctx, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	q, err := c.RequestSignedEventSubscriptionQuery(ctx, es)
	if err != nil {
		return nil, errors.Wrap(types.ErrTransport, err.Error())
	}
	return q, nil
}

// WriteExternalState hands a received event payload to the driver
// named by the publication spec's driver context.
func (s *DriverService) WriteExternalState(ctx context.Context, msg *types.WriteExternalStateMessage) error {
	if msg.DriverContext == nil {
		return errors.Wrap(types.ErrMalformed, "write external state: missing driver context")
	}
	loc, err := s.cfg.GetDriverByID(msg.DriverContext.DriverID)
	if err != nil {
		return err
	}
	c, err := s.client(ctx, loc)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.WriteExternalState(ctx, msg))
}

// PerformLock asks the sender-side driver to lock the asset under
// transfer.
func (s *DriverService) PerformLock(ctx context.Context, networkID, sessionID string) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.PerformLock(ctx, &types.PerformLockRequest{SessionID: sessionID}))
}

// CreateAsset asks the receiver-side driver to create the asset.
func (s *DriverService) CreateAsset(ctx context.Context, networkID, sessionID string) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.CreateAsset(ctx, &types.CreateAssetRequest{SessionID: sessionID}))
}

// Extinguish asks the sender-side driver to extinguish the asset.
func (s *DriverService) Extinguish(ctx context.Context, networkID, sessionID string) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.Extinguish(ctx, &types.ExtinguishRequest{SessionID: sessionID}))
}

// AssignAsset asks the receiver-side driver to assign the asset to the
// beneficiary.
func (s *DriverService) AssignAsset(ctx context.Context, networkID, sessionID string) error {
	c, err := s.networkClient(ctx, networkID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checkAck(c.AssignAsset(ctx, &types.AssignAssetRequest{SessionID: sessionID}))
}
