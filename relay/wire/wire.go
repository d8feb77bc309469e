// Package wire carries the gRPC bindings for the relay's service
// families. The protobuf codegen pipeline is owned by the deployment
// tooling; these hand-written descriptors keep the canonical full
// method names, which are the interoperable surface and must not
// change. All messages travel through the shared msgpack codec.
package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/codec"
	"google.golang.org/grpc"
)

type unaryMethod struct {
	name   string
	newIn  func() interface{}
	invoke func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error)
}

func (m unaryMethod) handler(fullName string) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := m.newIn()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m.invoke(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullName}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return m.invoke(srv, ctx, req)
		})
	}
}

func methods(serviceName string, ms []unaryMethod) []grpc.MethodDesc {
	out := make([]grpc.MethodDesc, 0, len(ms))
	for _, m := range ms {
		out = append(out, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    m.handler("/" + serviceName + "/" + m.name),
		})
	}
	return out
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out interface{}) error {
	return cc.Invoke(ctx, method, in, out, grpc.CallContentSubtype(codec.Name))
}
