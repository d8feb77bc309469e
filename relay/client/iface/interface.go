// Package iface declares the outbound call surfaces the relay services
// depend on, so tests can substitute in-memory fakes for the gRPC
// clients.
package iface

import (
	"context"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
)

// DriverCaller is the relay-side view of the local driver processes.
// Methods resolving by network id look the driver endpoint up in
// configuration; an error ack from the driver surfaces as a typed
// DriverError.
type DriverCaller interface {
	RequestDriverState(ctx context.Context, networkID string, q *types.Query) error
	SubscribeEvent(ctx context.Context, networkID string, es *types.EventSubscription) error
	SignEventSubscription(ctx context.Context, driverID string, es *types.EventSubscription) (*types.Query, error)
	WriteExternalState(ctx context.Context, msg *types.WriteExternalStateMessage) error
	PerformLock(ctx context.Context, networkID, sessionID string) error
	CreateAsset(ctx context.Context, networkID, sessionID string) error
	Extinguish(ctx context.Context, networkID, sessionID string) error
	AssignAsset(ctx context.Context, networkID, sessionID string) error
}

// PeerCaller is the relay-side view of remote relays.
type PeerCaller interface {
	RequestState(ctx context.Context, loc config.Location, q *types.Query) (*types.Ack, error)
	SendState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error)
	SendDriverState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error)
	SubscribeEvent(ctx context.Context, loc config.Location, es *types.EventSubscription) (*types.Ack, error)
	SendSubscriptionStatus(ctx context.Context, loc config.Location, ack *types.Ack) (*types.Ack, error)
	SendDriverSubscriptionStatus(ctx context.Context, loc config.Location, ack *types.Ack) (*types.Ack, error)
	PublishState(ctx context.Context, loc config.Location, vp *types.ViewPayload) (*types.Ack, error)
	SATP(loc config.Location) (wire.SATPClient, error)
}
