package eventsubscribe

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/db/kv"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/dlt-interop/relay/testing/assert"
	"github.com/dlt-interop/relay/testing/require"
	"github.com/pkg/errors"
)

type fakeDrivers struct {
	mu           sync.Mutex
	subscribeErr error
	subscribed   []*types.EventSubscription
}

func (f *fakeDrivers) SubscribeEvent(_ context.Context, _ string, es *types.EventSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, es)
	return f.subscribeErr
}

func (f *fakeDrivers) RequestDriverState(_ context.Context, _ string, _ *types.Query) error {
	return nil
}

func (f *fakeDrivers) SignEventSubscription(_ context.Context, _ string, es *types.EventSubscription) (*types.Query, error) {
	q := es.Query
	return &q, nil
}

func (f *fakeDrivers) WriteExternalState(_ context.Context, _ *types.WriteExternalStateMessage) error {
	return nil
}

func (f *fakeDrivers) PerformLock(_ context.Context, _, _ string) error { return nil }
func (f *fakeDrivers) CreateAsset(_ context.Context, _, _ string) error { return nil }
func (f *fakeDrivers) Extinguish(_ context.Context, _, _ string) error  { return nil }
func (f *fakeDrivers) AssignAsset(_ context.Context, _, _ string) error { return nil }

type fakePeers struct {
	mu       sync.Mutex
	statuses []*types.Ack
}

func (f *fakePeers) SendSubscriptionStatus(_ context.Context, _ config.Location, ack *types.Ack) (*types.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, ack)
	return &types.Ack{Status: types.AckOK, RequestID: ack.RequestID}, nil
}

func (f *fakePeers) sentStatuses() []*types.Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Ack, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakePeers) RequestState(_ context.Context, _ config.Location, _ *types.Query) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) SendState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) SendDriverState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) SubscribeEvent(_ context.Context, _ config.Location, _ *types.EventSubscription) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) SendDriverSubscriptionStatus(_ context.Context, _ config.Location, _ *types.Ack) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) PublishState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (f *fakePeers) SATP(_ config.Location) (wire.SATPClient, error) {
	return nil, nil
}

func setupServer(t *testing.T, drivers *fakeDrivers, peers *fakePeers) (*Server, *kv.Store, *kv.Store) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
name: RelayB
host: 127.0.0.1
port: "9081"
relays:
  RelayA:
    hostname: relay-a.example.com
    port: "9080"
`), 0600))
	resolver, err := config.Load(cfgPath)
	require.NoError(t, err)

	localDB, err := kv.NewKVStore(filepath.Join(dir, "db"))
	require.NoError(t, err)
	remoteDB, err := kv.NewKVStore(filepath.Join(dir, "remote_db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, localDB.Close())
		require.NoError(t, remoteDB.Close())
	})

	ctx := context.Background()
	srv := NewServer(ctx, &Config{
		RemoteDB:      remoteDB,
		Drivers:       drivers,
		Peers:         peers,
		Resolver:      resolver,
		Subscriptions: subscriptions.NewManager(ctx, localDB, drivers, peers, resolver),
	})
	return srv, localDB, remoteDB
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func inboundSubscription(requestID string, op types.SubscriptionOperation) *types.EventSubscription {
	return &types.EventSubscription{
		EventMatcher: types.EventMatcher{EventType: "LedgerState"},
		Query: types.Query{
			Address:         "relay-b.example.com:9081/network1/mychannel:simplestate",
			RequestingRelay: "RelayA",
			RequestID:       requestID,
		},
		Operation: op,
	}
}

func TestSubscribeEvent(t *testing.T) {
	drivers := &fakeDrivers{}
	srv, _, remoteDB := setupServer(t, drivers, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"

	ack, err := srv.SubscribeEvent(context.Background(), inboundSubscription(requestID, types.OperationSubscribe))
	require.NoError(t, err)
	assert.Equal(t, types.AckOK, ack.Status)

	stored, err := remoteDB.EventSubscription(requestID)
	require.NoError(t, err)
	assert.Equal(t, "RelayA", stored.Query.RequestingRelay)

	waitFor(t, func() bool {
		drivers.mu.Lock()
		defer drivers.mu.Unlock()
		return len(drivers.subscribed) == 1
	})
}

func TestSubscribeEvent_DriverErrorReachesOrigin(t *testing.T) {
	drivers := &fakeDrivers{subscribeErr: errors.New("Event subscription already exists")}
	peers := &fakePeers{}
	srv, _, _ := setupServer(t, drivers, peers)
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"

	_, err := srv.SubscribeEvent(context.Background(), inboundSubscription(requestID, types.OperationSubscribe))
	require.NoError(t, err)

	waitFor(t, func() bool {
		statuses := peers.sentStatuses()
		return len(statuses) == 1 && statuses[0].Status == types.AckError
	})
	assert.Equal(t, requestID, peers.sentStatuses()[0].RequestID)
}

func TestSendDriverSubscriptionStatus_UnsubscribeDeletesRecord(t *testing.T) {
	peers := &fakePeers{}
	srv, _, remoteDB := setupServer(t, &fakeDrivers{}, peers)
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, remoteDB.SaveEventSubscription(requestID, inboundSubscription(requestID, types.OperationUnsubscribe)))

	ack, err := srv.SendDriverSubscriptionStatus(context.Background(), &types.Ack{Status: types.AckOK, RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, types.AckOK, ack.Status)

	_, err = remoteDB.EventSubscription(requestID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	waitFor(t, func() bool {
		return len(peers.sentStatuses()) == 1
	})
}

func TestSendSubscriptionStatus_AdvancesLocalRecord(t *testing.T) {
	srv, localDB, _ := setupServer(t, &fakeDrivers{}, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, localDB.SaveEventSubscriptionState(requestID, &types.EventSubscriptionState{
		RequestID: requestID,
		Status:    types.SubscribePending,
	}))

	ack, err := srv.SendSubscriptionStatus(context.Background(), &types.Ack{Status: types.AckOK, RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, types.AckOK, ack.Status)

	st, err := localDB.EventSubscriptionState(requestID)
	require.NoError(t, err)
	assert.Equal(t, types.Subscribed, st.Status)
	assert.Equal(t, requestID, st.PublishingRequestID)
}
