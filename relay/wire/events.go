package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"google.golang.org/grpc"
)

// Event service identities.
const (
	EventSubscribeServiceName = "relay.events.EventSubscribe"
	EventPublishServiceName   = "relay.events.EventPublish"
)

// EventSubscribeServer serves peer subscription requests and status
// returns.
type EventSubscribeServer interface {
	SubscribeEvent(ctx context.Context, in *types.EventSubscription) (*types.Ack, error)
	SendSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error)
	SendDriverSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error)
}

// RegisterEventSubscribeServer registers the EventSubscribe service.
func RegisterEventSubscribeServer(s *grpc.Server, srv EventSubscribeServer) {
	s.RegisterService(&eventSubscribeServiceDesc, srv)
}

var eventSubscribeServiceDesc = grpc.ServiceDesc{
	ServiceName: EventSubscribeServiceName,
	HandlerType: (*EventSubscribeServer)(nil),
	Methods: methods(EventSubscribeServiceName, []unaryMethod{
		{
			name:  "SubscribeEvent",
			newIn: func() interface{} { return new(types.EventSubscription) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(EventSubscribeServer).SubscribeEvent(ctx, in.(*types.EventSubscription))
			},
		},
		{
			name:  "SendSubscriptionStatus",
			newIn: func() interface{} { return new(types.Ack) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(EventSubscribeServer).SendSubscriptionStatus(ctx, in.(*types.Ack))
			},
		},
		{
			name:  "SendDriverSubscriptionStatus",
			newIn: func() interface{} { return new(types.Ack) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(EventSubscribeServer).SendDriverSubscriptionStatus(ctx, in.(*types.Ack))
			},
		},
	}),
}

// EventPublishServer serves incoming event payloads: from the local
// driver on the source relay, from the peer on the destination relay.
type EventPublishServer interface {
	SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
	SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
}

// RegisterEventPublishServer registers the EventPublish service.
func RegisterEventPublishServer(s *grpc.Server, srv EventPublishServer) {
	s.RegisterService(&eventPublishServiceDesc, srv)
}

var eventPublishServiceDesc = grpc.ServiceDesc{
	ServiceName: EventPublishServiceName,
	HandlerType: (*EventPublishServer)(nil),
	Methods: methods(EventPublishServiceName, []unaryMethod{
		{
			name:  "SendState",
			newIn: func() interface{} { return new(types.ViewPayload) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(EventPublishServer).SendState(ctx, in.(*types.ViewPayload))
			},
		},
		{
			name:  "SendDriverState",
			newIn: func() interface{} { return new(types.ViewPayload) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(EventPublishServer).SendDriverState(ctx, in.(*types.ViewPayload))
			},
		},
	}),
}

// EventSubscribeClient calls a remote relay's EventSubscribe surface.
type EventSubscribeClient interface {
	SubscribeEvent(ctx context.Context, in *types.EventSubscription) (*types.Ack, error)
	SendSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error)
	SendDriverSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error)
}

type eventSubscribeClient struct {
	cc grpc.ClientConnInterface
}

// NewEventSubscribeClient returns an EventSubscribe client.
func NewEventSubscribeClient(cc grpc.ClientConnInterface) EventSubscribeClient {
	return &eventSubscribeClient{cc: cc}
}

func (c *eventSubscribeClient) SubscribeEvent(ctx context.Context, in *types.EventSubscription) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+EventSubscribeServiceName+"/SubscribeEvent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eventSubscribeClient) SendSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+EventSubscribeServiceName+"/SendSubscriptionStatus", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eventSubscribeClient) SendDriverSubscriptionStatus(ctx context.Context, in *types.Ack) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+EventSubscribeServiceName+"/SendDriverSubscriptionStatus", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventPublishClient calls a remote relay's EventPublish surface.
type EventPublishClient interface {
	SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
	SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
}

type eventPublishClient struct {
	cc grpc.ClientConnInterface
}

// NewEventPublishClient returns an EventPublish client.
func NewEventPublishClient(cc grpc.ClientConnInterface) EventPublishClient {
	return &eventPublishClient{cc: cc}
}

func (c *eventPublishClient) SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+EventPublishServiceName+"/SendState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eventPublishClient) SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+EventPublishServiceName+"/SendDriverState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
