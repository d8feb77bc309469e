package network

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
)

type fakePeers struct {
	mu         sync.Mutex
	requestAck *types.Ack
	requestErr error
	beforeAck  func(q *types.Query)
	requests   []*types.Query
}

func (f *fakePeers) RequestState(_ context.Context, _ config.Location, q *types.Query) (*types.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, q)
	if f.beforeAck != nil {
		f.beforeAck(q)
	}
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	if f.requestAck != nil {
		ackCopy := *f.requestAck
		return &ackCopy, nil
	}
	return &types.Ack{Status: types.AckOK, RequestID: q.RequestID}, nil
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

func (f *fakePeers) SendSubscriptionStatus(_ context.Context, _ config.Location, _ *types.Ack) (*types.Ack, error) {
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

func setupServer(t *testing.T, peers *fakePeers) (*Server, *kv.Store, *kv.Store) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
name: RelayA
host: 127.0.0.1
port: "9080"
relays:
  RelayB:
    hostname: relay-b.example.com
    port: "9081"
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
		LocalDB:       localDB,
		RemoteDB:      remoteDB,
		Peers:         peers,
		Resolver:      resolver,
		Subscriptions: subscriptions.NewManager(ctx, localDB, nil, peers, resolver),
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

func TestRequestState(t *testing.T) {
	peers := &fakePeers{}
	srv, localDB, _ := setupServer(t, peers)

	ack, err := srv.RequestState(context.Background(), &types.NetworkQuery{
		Address:           "relay-b.example.com:9081/network1/mychannel:simplestate:Read:a",
		RequestingNetwork: "network2",
	})
	require.NoError(t, err)
	require.Equal(t, types.AckOK, ack.Status)
	require.NotEqual(t, "", ack.RequestID)

	waitFor(t, func() bool {
		st, err := localDB.RequestState(ack.RequestID)
		return err == nil && st.Status == types.RequestPending
	})

	peers.mu.Lock()
	defer peers.mu.Unlock()
	require.Equal(t, 1, len(peers.requests))
	assert.Equal(t, "RelayA", peers.requests[0].RequestingRelay)
	assert.Equal(t, ack.RequestID, peers.requests[0].RequestID)
}

func TestRequestState_BadAddress(t *testing.T) {
	srv, _, _ := setupServer(t, &fakePeers{})
	ack, err := srv.RequestState(context.Background(), &types.NetworkQuery{Address: "garbage"})
	require.NoError(t, err)
	assert.Equal(t, types.AckError, ack.Status)
}

func TestRequestState_PeerError(t *testing.T) {
	peers := &fakePeers{requestAck: &types.Ack{Status: types.AckError, Message: "no such network"}}
	srv, localDB, _ := setupServer(t, peers)

	ack, err := srv.RequestState(context.Background(), &types.NetworkQuery{
		Address: "relay-b.example.com:9081/network1/view",
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		st, err := localDB.RequestState(ack.RequestID)
		return err == nil && st.Status == types.RequestError && st.ErrorMessage == "no such network"
	})
}

func TestRequestState_ViewBeforeAckKeepsTerminalState(t *testing.T) {
	peers := &fakePeers{}
	srv, localDB, _ := setupServer(t, peers)

	// The remote relay's view can land through SendState before the
	// synchronous peer ack returns; the terminal record must survive
	// the late-arriving ack fold.
	peers.beforeAck = func(q *types.Query) {
		require.NoError(t, localDB.SaveRequestState(q.RequestID, &types.RequestState{
			RequestID: q.RequestID,
			Status:    types.RequestCompleted,
			View:      &types.View{Data: []byte("fast view")},
		}))
	}

	ack, err := srv.RequestState(context.Background(), &types.NetworkQuery{
		Address: "relay-b.example.com:9081/network1/mychannel:simplestate:Read:a",
	})
	require.NoError(t, err)
	require.Equal(t, types.AckOK, ack.Status)

	waitFor(t, func() bool {
		peers.mu.Lock()
		defer peers.mu.Unlock()
		return len(peers.requests) == 1
	})
	time.Sleep(100 * time.Millisecond)

	st, err := localDB.RequestState(ack.RequestID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestCompleted, st.Status, "Terminal state must not regress to pending")
	require.NotNil(t, st.View)
}

func TestGetState_TombstonesTerminalRecord(t *testing.T) {
	srv, localDB, _ := setupServer(t, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, localDB.SaveRequestState(requestID, &types.RequestState{
		RequestID: requestID,
		Status:    types.RequestCompleted,
		View:      &types.View{Data: []byte("v")},
	}))

	st, err := srv.GetState(context.Background(), &types.GetStateMessage{RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, types.RequestCompleted, st.Status)
	require.NotNil(t, st.View)

	st, err = srv.GetState(context.Background(), &types.GetStateMessage{RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, types.RequestDeleted, st.Status, "Terminal record is tombstoned after the first read")
}

func TestGetState_PendingIsStable(t *testing.T) {
	srv, localDB, _ := setupServer(t, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, localDB.SaveRequestState(requestID, &types.RequestState{
		RequestID: requestID,
		Status:    types.RequestPending,
	}))

	for i := 0; i < 3; i++ {
		st, err := srv.GetState(context.Background(), &types.GetStateMessage{RequestID: requestID})
		require.NoError(t, err)
		assert.Equal(t, types.RequestPending, st.Status)
	}
}

func TestGetState_Unknown(t *testing.T) {
	srv, _, _ := setupServer(t, &fakePeers{})
	_, err := srv.GetState(context.Background(), &types.GetStateMessage{RequestID: "missing"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetEventStates_DrainsDeliveries(t *testing.T) {
	srv, localDB, _ := setupServer(t, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, localDB.PrependEventState(requestID, types.EventState{
		EventID: "e1",
		State:   types.RequestState{RequestID: requestID, Status: types.RequestEventReceived},
	}))

	st, err := srv.GetEventStates(context.Background(), &types.GetStateMessage{RequestID: requestID})
	require.NoError(t, err)
	require.Equal(t, 1, len(st.States))
	assert.Equal(t, types.RequestEventReceived, st.States[0].State.Status)

	st, err = srv.GetEventStates(context.Background(), &types.GetStateMessage{RequestID: requestID})
	require.NoError(t, err)
	require.Equal(t, 1, len(st.States))
	assert.Equal(t, types.RequestDeleted, st.States[0].State.Status)
}

func TestGetEventSubscriptionState_DeletesUnsubscribed(t *testing.T) {
	srv, localDB, _ := setupServer(t, &fakePeers{})
	requestID := "6c8398ae-a7c2-4d9d-9a1b-9d4f5c2a1e3f"
	require.NoError(t, localDB.SaveEventSubscriptionState(requestID, &types.EventSubscriptionState{
		RequestID: requestID,
		Status:    types.Unsubscribed,
	}))

	st, err := srv.GetEventSubscriptionState(context.Background(), &types.GetStateMessage{RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, types.Unsubscribed, st.Status)

	_, err = srv.GetEventSubscriptionState(context.Background(), &types.GetStateMessage{RequestID: requestID})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRequestDatabase(t *testing.T) {
	srv, localDB, remoteDB := setupServer(t, &fakePeers{})
	require.NoError(t, localDB.SaveRequestState("r1", &types.RequestState{RequestID: "r1"}))
	require.NoError(t, remoteDB.SaveQuery("r2", &types.Query{RequestID: "r2"}))

	dump, err := srv.RequestDatabase(context.Background(), &types.GetStateMessage{})
	require.NoError(t, err)
	assert.Equal(t, 2, len(dump.Pairs))
}
