package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"google.golang.org/grpc"
)

// DriverServiceName identifies the driver-facing surface. The driver
// process serves it; the relay only ever acts as a client.
const DriverServiceName = "driver.driver.DriverCommunication"

// DriverClient calls the relay's ledger-specific driver. Every call
// returns the driver's Ack; ledger results arrive asynchronously
// through the relay's own peer-facing services.
type DriverClient interface {
	RequestDriverState(ctx context.Context, in *types.Query) (*types.Ack, error)
	SubscribeEvent(ctx context.Context, in *types.EventSubscription) (*types.Ack, error)
	RequestSignedEventSubscriptionQuery(ctx context.Context, in *types.EventSubscription) (*types.Query, error)
	WriteExternalState(ctx context.Context, in *types.WriteExternalStateMessage) (*types.Ack, error)
	PerformLock(ctx context.Context, in *types.PerformLockRequest) (*types.Ack, error)
	CreateAsset(ctx context.Context, in *types.CreateAssetRequest) (*types.Ack, error)
	Extinguish(ctx context.Context, in *types.ExtinguishRequest) (*types.Ack, error)
	AssignAsset(ctx context.Context, in *types.AssignAssetRequest) (*types.Ack, error)
}

type driverClient struct {
	cc grpc.ClientConnInterface
}

// NewDriverClient returns a DriverCommunication client over the given
// connection.
func NewDriverClient(cc grpc.ClientConnInterface) DriverClient {
	return &driverClient{cc: cc}
}

func (c *driverClient) ack(ctx context.Context, method string, in interface{}) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+DriverServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *driverClient) RequestDriverState(ctx context.Context, in *types.Query) (*types.Ack, error) {
	return c.ack(ctx, "RequestDriverState", in)
}

func (c *driverClient) SubscribeEvent(ctx context.Context, in *types.EventSubscription) (*types.Ack, error) {
	return c.ack(ctx, "SubscribeEvent", in)
}

func (c *driverClient) RequestSignedEventSubscriptionQuery(ctx context.Context, in *types.EventSubscription) (*types.Query, error) {
	out := new(types.Query)
	if err := invoke(ctx, c.cc, "/"+DriverServiceName+"/RequestSignedEventSubscriptionQuery", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *driverClient) WriteExternalState(ctx context.Context, in *types.WriteExternalStateMessage) (*types.Ack, error) {
	return c.ack(ctx, "WriteExternalState", in)
}

func (c *driverClient) PerformLock(ctx context.Context, in *types.PerformLockRequest) (*types.Ack, error) {
	return c.ack(ctx, "PerformLock", in)
}

func (c *driverClient) CreateAsset(ctx context.Context, in *types.CreateAssetRequest) (*types.Ack, error) {
	return c.ack(ctx, "CreateAsset", in)
}

func (c *driverClient) Extinguish(ctx context.Context, in *types.ExtinguishRequest) (*types.Ack, error) {
	return c.ack(ctx, "Extinguish", in)
}

func (c *driverClient) AssignAsset(ctx context.Context, in *types.AssignAssetRequest) (*types.Ack, error) {
	return c.ack(ctx, "AssignAsset", in)
}
