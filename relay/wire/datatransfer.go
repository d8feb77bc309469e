package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"google.golang.org/grpc"
)

// DataTransferServiceName is the peer-to-peer data sharing service
// identity.
const DataTransferServiceName = "relay.datatransfer.DataTransfer"

// DataTransferServer serves incoming peer data-sharing calls.
type DataTransferServer interface {
	RequestState(ctx context.Context, in *types.Query) (*types.Ack, error)
	SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
	SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
}

// RegisterDataTransferServer registers the DataTransfer service.
func RegisterDataTransferServer(s *grpc.Server, srv DataTransferServer) {
	s.RegisterService(&dataTransferServiceDesc, srv)
}

var dataTransferServiceDesc = grpc.ServiceDesc{
	ServiceName: DataTransferServiceName,
	HandlerType: (*DataTransferServer)(nil),
	Methods: methods(DataTransferServiceName, []unaryMethod{
		{
			name:  "RequestState",
			newIn: func() interface{} { return new(types.Query) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(DataTransferServer).RequestState(ctx, in.(*types.Query))
			},
		},
		{
			name:  "SendState",
			newIn: func() interface{} { return new(types.ViewPayload) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(DataTransferServer).SendState(ctx, in.(*types.ViewPayload))
			},
		},
		{
			name:  "SendDriverState",
			newIn: func() interface{} { return new(types.ViewPayload) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(DataTransferServer).SendDriverState(ctx, in.(*types.ViewPayload))
			},
		},
	}),
}

// DataTransferClient calls a remote relay's DataTransfer surface.
type DataTransferClient interface {
	RequestState(ctx context.Context, in *types.Query) (*types.Ack, error)
	SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
	SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error)
}

type dataTransferClient struct {
	cc grpc.ClientConnInterface
}

// NewDataTransferClient returns a DataTransfer client over the given
// connection.
func NewDataTransferClient(cc grpc.ClientConnInterface) DataTransferClient {
	return &dataTransferClient{cc: cc}
}

func (c *dataTransferClient) RequestState(ctx context.Context, in *types.Query) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+DataTransferServiceName+"/RequestState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataTransferClient) SendState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+DataTransferServiceName+"/SendState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataTransferClient) SendDriverState(ctx context.Context, in *types.ViewPayload) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+DataTransferServiceName+"/SendDriverState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
