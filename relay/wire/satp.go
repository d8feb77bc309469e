package wire

import (
	"context"

	"github.com/dlt-interop/relay/relay/types"
	"google.golang.org/grpc"
)

// SATPServiceName is the gateway-to-gateway asset transfer service
// identity.
const SATPServiceName = "relay.satp.SATP"

// SATPServer serves the asset transfer surface. InitiateTransfer is
// called by a local application and SendAssetStatus by the gateway's
// own driver; the rest arrive from the counterparty gateway.
type SATPServer interface {
	InitiateTransfer(ctx context.Context, in *types.TransferRequest) (*types.Ack, error)
	TransferProposalClaims(ctx context.Context, in *types.TransferProposalClaims) (*types.Ack, error)
	TransferProposalReceipt(ctx context.Context, in *types.TransferProposalReceipt) (*types.Ack, error)
	TransferCommence(ctx context.Context, in *types.TransferCommence) (*types.Ack, error)
	AckCommence(ctx context.Context, in *types.AckCommence) (*types.Ack, error)
	SendAssetStatus(ctx context.Context, in *types.SendAssetStatus) (*types.Ack, error)
	LockAssertion(ctx context.Context, in *types.LockAssertion) (*types.Ack, error)
	LockAssertionReceipt(ctx context.Context, in *types.LockAssertionReceipt) (*types.Ack, error)
	CommitPrepare(ctx context.Context, in *types.CommitPrepare) (*types.Ack, error)
	CommitReady(ctx context.Context, in *types.CommitReady) (*types.Ack, error)
	CommitFinalAssertion(ctx context.Context, in *types.CommitFinalAssertion) (*types.Ack, error)
	AckFinalReceipt(ctx context.Context, in *types.AckFinalReceipt) (*types.Ack, error)
	TransferCompleted(ctx context.Context, in *types.TransferCompleted) (*types.Ack, error)
}

// RegisterSATPServer registers the SATP service.
func RegisterSATPServer(s *grpc.Server, srv SATPServer) {
	s.RegisterService(&satpServiceDesc, srv)
}

var satpServiceDesc = grpc.ServiceDesc{
	ServiceName: SATPServiceName,
	HandlerType: (*SATPServer)(nil),
	Methods: methods(SATPServiceName, []unaryMethod{
		{
			name:  "InitiateTransfer",
			newIn: func() interface{} { return new(types.TransferRequest) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).InitiateTransfer(ctx, in.(*types.TransferRequest))
			},
		},
		{
			name:  "TransferProposalClaims",
			newIn: func() interface{} { return new(types.TransferProposalClaims) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).TransferProposalClaims(ctx, in.(*types.TransferProposalClaims))
			},
		},
		{
			name:  "TransferProposalReceipt",
			newIn: func() interface{} { return new(types.TransferProposalReceipt) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).TransferProposalReceipt(ctx, in.(*types.TransferProposalReceipt))
			},
		},
		{
			name:  "TransferCommence",
			newIn: func() interface{} { return new(types.TransferCommence) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).TransferCommence(ctx, in.(*types.TransferCommence))
			},
		},
		{
			name:  "AckCommence",
			newIn: func() interface{} { return new(types.AckCommence) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).AckCommence(ctx, in.(*types.AckCommence))
			},
		},
		{
			name:  "SendAssetStatus",
			newIn: func() interface{} { return new(types.SendAssetStatus) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).SendAssetStatus(ctx, in.(*types.SendAssetStatus))
			},
		},
		{
			name:  "LockAssertion",
			newIn: func() interface{} { return new(types.LockAssertion) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).LockAssertion(ctx, in.(*types.LockAssertion))
			},
		},
		{
			name:  "LockAssertionReceipt",
			newIn: func() interface{} { return new(types.LockAssertionReceipt) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).LockAssertionReceipt(ctx, in.(*types.LockAssertionReceipt))
			},
		},
		{
			name:  "CommitPrepare",
			newIn: func() interface{} { return new(types.CommitPrepare) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).CommitPrepare(ctx, in.(*types.CommitPrepare))
			},
		},
		{
			name:  "CommitReady",
			newIn: func() interface{} { return new(types.CommitReady) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).CommitReady(ctx, in.(*types.CommitReady))
			},
		},
		{
			name:  "CommitFinalAssertion",
			newIn: func() interface{} { return new(types.CommitFinalAssertion) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).CommitFinalAssertion(ctx, in.(*types.CommitFinalAssertion))
			},
		},
		{
			name:  "AckFinalReceipt",
			newIn: func() interface{} { return new(types.AckFinalReceipt) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).AckFinalReceipt(ctx, in.(*types.AckFinalReceipt))
			},
		},
		{
			name:  "TransferCompleted",
			newIn: func() interface{} { return new(types.TransferCompleted) },
			invoke: func(srv interface{}, ctx context.Context, in interface{}) (interface{}, error) {
				return srv.(SATPServer).TransferCompleted(ctx, in.(*types.TransferCompleted))
			},
		},
	}),
}

// SATPClient calls a gateway's SATP surface; local applications use
// InitiateTransfer, peer gateways use the rest.
type SATPClient interface {
	InitiateTransfer(ctx context.Context, in *types.TransferRequest) (*types.Ack, error)
	TransferProposalClaims(ctx context.Context, in *types.TransferProposalClaims) (*types.Ack, error)
	TransferProposalReceipt(ctx context.Context, in *types.TransferProposalReceipt) (*types.Ack, error)
	TransferCommence(ctx context.Context, in *types.TransferCommence) (*types.Ack, error)
	AckCommence(ctx context.Context, in *types.AckCommence) (*types.Ack, error)
	SendAssetStatus(ctx context.Context, in *types.SendAssetStatus) (*types.Ack, error)
	LockAssertion(ctx context.Context, in *types.LockAssertion) (*types.Ack, error)
	LockAssertionReceipt(ctx context.Context, in *types.LockAssertionReceipt) (*types.Ack, error)
	CommitPrepare(ctx context.Context, in *types.CommitPrepare) (*types.Ack, error)
	CommitReady(ctx context.Context, in *types.CommitReady) (*types.Ack, error)
	CommitFinalAssertion(ctx context.Context, in *types.CommitFinalAssertion) (*types.Ack, error)
	AckFinalReceipt(ctx context.Context, in *types.AckFinalReceipt) (*types.Ack, error)
	TransferCompleted(ctx context.Context, in *types.TransferCompleted) (*types.Ack, error)
}

type satpClient struct {
	cc grpc.ClientConnInterface
}

// NewSATPClient returns a SATP client over the given connection.
func NewSATPClient(cc grpc.ClientConnInterface) SATPClient {
	return &satpClient{cc: cc}
}

func (c *satpClient) call(ctx context.Context, method string, in interface{}) (*types.Ack, error) {
	out := new(types.Ack)
	if err := invoke(ctx, c.cc, "/"+SATPServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *satpClient) InitiateTransfer(ctx context.Context, in *types.TransferRequest) (*types.Ack, error) {
	return c.call(ctx, "InitiateTransfer", in)
}

func (c *satpClient) TransferProposalClaims(ctx context.Context, in *types.TransferProposalClaims) (*types.Ack, error) {
	return c.call(ctx, "TransferProposalClaims", in)
}

func (c *satpClient) TransferProposalReceipt(ctx context.Context, in *types.TransferProposalReceipt) (*types.Ack, error) {
	return c.call(ctx, "TransferProposalReceipt", in)
}

func (c *satpClient) TransferCommence(ctx context.Context, in *types.TransferCommence) (*types.Ack, error) {
	return c.call(ctx, "TransferCommence", in)
}

func (c *satpClient) AckCommence(ctx context.Context, in *types.AckCommence) (*types.Ack, error) {
	return c.call(ctx, "AckCommence", in)
}

func (c *satpClient) SendAssetStatus(ctx context.Context, in *types.SendAssetStatus) (*types.Ack, error) {
	return c.call(ctx, "SendAssetStatus", in)
}

func (c *satpClient) LockAssertion(ctx context.Context, in *types.LockAssertion) (*types.Ack, error) {
	return c.call(ctx, "LockAssertion", in)
}

func (c *satpClient) LockAssertionReceipt(ctx context.Context, in *types.LockAssertionReceipt) (*types.Ack, error) {
	return c.call(ctx, "LockAssertionReceipt", in)
}

func (c *satpClient) CommitPrepare(ctx context.Context, in *types.CommitPrepare) (*types.Ack, error) {
	return c.call(ctx, "CommitPrepare", in)
}

func (c *satpClient) CommitReady(ctx context.Context, in *types.CommitReady) (*types.Ack, error) {
	return c.call(ctx, "CommitReady", in)
}

func (c *satpClient) CommitFinalAssertion(ctx context.Context, in *types.CommitFinalAssertion) (*types.Ack, error) {
	return c.call(ctx, "CommitFinalAssertion", in)
}

func (c *satpClient) AckFinalReceipt(ctx context.Context, in *types.AckFinalReceipt) (*types.Ack, error) {
	return c.call(ctx, "AckFinalReceipt", in)
}

func (c *satpClient) TransferCompleted(ctx context.Context, in *types.TransferCompleted) (*types.Ack, error) {
	return c.call(ctx, "TransferCompleted", in)
}
