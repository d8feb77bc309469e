package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"google.golang.org/grpc"
)

// NetworkServiceName is the client-facing service identity.
const NetworkServiceName = "networks.networks.Network"

// NetworkServer is the surface exposed to local client applications.
type NetworkServer interface {
	RequestState(ctx context.Context, in *types.NetworkQuery) (*types.Ack, error)
	GetState(ctx context.Context, in *types.GetStateMessage) (*types.RequestState, error)
	SubscribeEvent(ctx context.Context, in *types.NetworkEventSubscription) (*types.Ack, error)
	GetEventSubscriptionState(ctx context.Context, in *types.GetStateMessage) (*types.EventSubscriptionState, error)
	UnsubscribeEvent(ctx context.Context, in *types.NetworkEventUnsubscription) (*types.Ack, error)
	GetEventStates(ctx context.Context, in *types.GetStateMessage) (*types.EventStates, error)
	RequestDatabase(ctx context.Context, in *types.GetStateMessage) (*types.RelayDatabase, error)
}

// RegisterNetworkServer registers the Network service on a gRPC server.
func RegisterNetworkServer(s *grpc.Server, srv NetworkServer) {
	s.RegisterService(&networkServiceDesc, srv)
}

var networkServiceDesc = grpc.ServiceDesc{
	ServiceName: NetworkServiceName,
	HandlerType: (*NetworkServer)(nil),
	Methods: methods(NetworkServiceName, []unaryMethod{
		{
			name:  "RequestState",
			newIn: func() interface{} { return new(types.NetworkQuery) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).RequestState(ctx, in.(*types.NetworkQuery))
			},
		},
		{
			name:  "GetState",
			newIn: func() interface{} { return new(types.GetStateMessage) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).GetState(ctx, in.(*types.GetStateMessage))
			},
		},
		{
			name:  "SubscribeEvent",
			newIn: func() interface{} { return new(types.NetworkEventSubscription) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).SubscribeEvent(ctx, in.(*types.NetworkEventSubscription))
			},
		},
		{
			name:  "GetEventSubscriptionState",
			newIn: func() interface{} { return new(types.GetStateMessage) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).GetEventSubscriptionState(ctx, in.(*types.GetStateMessage))
			},
		},
		{
			name:  "UnsubscribeEvent",
			newIn: func() interface{} { return new(types.NetworkEventUnsubscription) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).UnsubscribeEvent(ctx, in.(*types.NetworkEventUnsubscription))
			},
		},
		{
			name:  "GetEventStates",
			newIn: func() interface{} { return new(types.GetStateMessage) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).GetEventStates(ctx, in.(*types.GetStateMessage))
			},
		},
		{
			name:  "RequestDatabase",
			newIn: func() interface{} { return new(types.GetStateMessage) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(NetworkServer).RequestDatabase(ctx, in.(*types.GetStateMessage))
			},
		},
	}),
}

// NetworkClient is used by client applications and the relay's own
// test programs.
type NetworkClient interface {
	RequestState(ctx context.Context, in *types.NetworkQuery) (*types.Ack, error)
	GetState(ctx context.Context, in *types.GetStateMessage) (*types.RequestState, error)
	SubscribeEvent(ctx context.Context, in *types.NetworkEventSubscription) (*types.Ack, error)
	GetEventSubscriptionState(ctx context.Context, in *types.GetStateMessage) (*types.EventSubscriptionState, error)
	UnsubscribeEvent(ctx context.Context, in *types.NetworkEventUnsubscription) (*types.Ack, error)
	GetEventStates(ctx context.Context, in *types.GetStateMessage) (*types.EventStates, error)
	RequestDatabase(ctx context.Context, in *types.GetStateMessage) (*types.RelayDatabase, error)
}

type networkClient struct {
	cc grpc.ClientConnInterface
}

// NewNetworkClient returns a Network service client over the given
// connection.
func NewNetworkClient(cc grpc.ClientConnInterface) NetworkClient {
	return &networkClient{cc: cc}
}

func (c *networkClient) RequestState(ctx context.Context, in *types.NetworkQuery) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/RequestState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) GetState(ctx context.Context, in *types.GetStateMessage) (*types.RequestState, error) {
	out := new(types.RequestState)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/GetState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) SubscribeEvent(ctx context.Context, in *types.NetworkEventSubscription) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/SubscribeEvent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) GetEventSubscriptionState(ctx context.Context, in *types.GetStateMessage) (*types.EventSubscriptionState, error) {
	out := new(types.EventSubscriptionState)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/GetEventSubscriptionState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) UnsubscribeEvent(ctx context.Context, in *types.NetworkEventUnsubscription) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/UnsubscribeEvent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) GetEventStates(ctx context.Context, in *types.GetStateMessage) (*types.EventStates, error) {
	out := new(types.EventStates)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/GetEventStates", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *networkClient) RequestDatabase(ctx context.Context, in *types.GetStateMessage) (*types.RelayDatabase, error) {
	out := new(types.RelayDatabase)
	if err := invoke(ctx, c.cc, "/"+NetworkServiceName+"/RequestDatabase", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
