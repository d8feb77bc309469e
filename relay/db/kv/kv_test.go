package kv

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/testing/assert"
	"github.com/dlt-interop/relay/testing/require"
)

func setupDB(t testing.TB) *Store {
	db, err := NewKVStore(t.TempDir())
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, db.Close(), "Failed to close database")
	})
	return db
}

func TestSetGetUnset(t *testing.T) {
	db := setupDB(t)

	err := db.Set("k1", &types.Ack{Status: types.AckOK, RequestID: "r1"})
	require.NoError(t, err)

	got := &types.Ack{}
	require.NoError(t, db.Get("k1", got))
	assert.Equal(t, types.AckOK, got.Status)
	assert.Equal(t, "r1", got.RequestID)

	prior := &types.Ack{}
	require.NoError(t, db.Unset("k1", prior))
	assert.Equal(t, "r1", prior.RequestID)

	err = db.Get("k1", got)
	assert.ErrorIs(t, err, types.ErrNotFound)
	err = db.Unset("k1", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSet_Overwrite(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, db.Set("k1", &types.Ack{RequestID: "old"}))
	require.NoError(t, db.Set("k1", &types.Ack{RequestID: "new"}))
	got := &types.Ack{}
	require.NoError(t, db.Get("k1", got))
	assert.Equal(t, "new", got.RequestID)
}

func TestHas(t *testing.T) {
	db := setupDB(t)

	found, err := db.Has("nope")
	require.NoError(t, err)
	assert.Equal(t, false, found)

	require.NoError(t, db.Set("yep", &types.Ack{}))
	found, err = db.Has("yep")
	require.NoError(t, err)
	assert.Equal(t, true, found)
}

func TestScanPrefix(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, db.Set(EventSubscriptionPrefix+"a", &types.Ack{RequestID: "a"}))
	require.NoError(t, db.Set(EventSubscriptionPrefix+"b", &types.Ack{RequestID: "b"}))
	require.NoError(t, db.Set(SATPSessionPrefix+"c", &types.Ack{RequestID: "c"}))

	got, err := db.ScanPrefix(EventSubscriptionPrefix)
	require.NoError(t, err)
	assert.Equal(t, 2, len(got))

	all, err := db.ScanPrefix("")
	require.NoError(t, err)
	assert.Equal(t, 3, len(all))
}

func TestRequestState(t *testing.T) {
	db := setupDB(t)

	st := &types.RequestState{
		RequestID: "r1",
		Status:    types.RequestCompleted,
		View:      &types.View{Meta: types.Meta{Protocol: "fabric"}, Data: []byte("payload")},
	}
	require.NoError(t, db.SaveRequestState("r1", st))
	got, err := db.RequestState("r1")
	require.NoError(t, err)
	assert.DeepEqual(t, st, got)

	_, err = db.RequestState("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestQuery(t *testing.T) {
	db := setupDB(t)

	q := &types.Query{RequestID: "r1", Address: "localhost:9080/network1/view", RequestingRelay: "RelayA"}
	require.NoError(t, db.SaveQuery("r1", q))
	got, err := db.Query("r1")
	require.NoError(t, err)
	assert.DeepEqual(t, q, got)
}

func TestEventSubscriptionState(t *testing.T) {
	db := setupDB(t)

	st := &types.EventSubscriptionState{
		RequestID: "r1",
		Status:    types.SubscribePendingAck,
		EventPublicationSpecs: []types.EventPublication{
			{AppURL: "http://localhost:8080/events"},
		},
	}
	require.NoError(t, db.SaveEventSubscriptionState("r1", st))
	got, err := db.EventSubscriptionState("r1")
	require.NoError(t, err)
	assert.DeepEqual(t, st, got)

	require.NoError(t, db.DeleteEventSubscriptionState("r1"))
	_, err = db.EventSubscriptionState("r1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestEventStates_EmptyOnMissing(t *testing.T) {
	db := setupDB(t)

	st, err := db.EventStates("r1")
	require.NoError(t, err)
	assert.Equal(t, 0, len(st.States))
}

func TestPrependEventState(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, db.PrependEventState("r1", types.EventState{EventID: "e1"}))
	require.NoError(t, db.PrependEventState("r1", types.EventState{EventID: "e2"}))

	st, err := db.EventStates("r1")
	require.NoError(t, err)
	require.Equal(t, 2, len(st.States))
	assert.Equal(t, "e2", st.States[0].EventID, "Latest delivery must be first")
	assert.Equal(t, "e1", st.States[1].EventID)
}

func TestUpdateEventStateStatus(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, db.PrependEventState("r1", types.EventState{
		EventID: "e1",
		State:   types.RequestState{RequestID: "r1", Status: types.RequestEventReceived},
	}))
	require.NoError(t, db.UpdateEventStateStatus("r1", "e1", types.RequestEventWritten, ""))

	st, err := db.EventStates("r1")
	require.NoError(t, err)
	assert.Equal(t, types.RequestEventWritten, st.States[0].State.Status)

	err = db.UpdateEventStateStatus("r1", "nope", types.RequestEventWritten, "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSATPSession(t *testing.T) {
	db := setupDB(t)

	sess := &types.SATPSession{
		SessionID: "s1",
		Role:      types.RoleSender,
		Phase:     types.PhaseCommenceAcked,
	}
	require.NoError(t, db.SaveSATPSession("s1", sess))
	got, err := db.SATPSession("s1")
	require.NoError(t, err)
	assert.DeepEqual(t, sess, got)
}

func TestPrependEventState_Concurrent(t *testing.T) {
	db := setupDB(t)

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			require.NoError(t, db.PrependEventState("r1", types.EventState{
				EventID: fmt.Sprintf("e%d", i),
				State:   types.RequestState{RequestID: "r1", Status: types.RequestEventReceived},
			}))
		}(i)
	}
	wg.Wait()

	st, err := db.EventStates("r1")
	require.NoError(t, err)
	assert.Equal(t, n, len(st.States), "Every concurrent delivery must survive")
}

func TestUpdateEventStateStatus_Concurrent(t *testing.T) {
	db := setupDB(t)

	const n = 16
	for i := 0; i < n; i++ {
		require.NoError(t, db.PrependEventState("r1", types.EventState{
			EventID: fmt.Sprintf("e%d", i),
			State:   types.RequestState{RequestID: "r1", Status: types.RequestEventReceived},
		}))
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			require.NoError(t, db.UpdateEventStateStatus("r1", fmt.Sprintf("e%d", i), types.RequestEventWritten, ""))
		}(i)
	}
	wg.Wait()

	st, err := db.EventStates("r1")
	require.NoError(t, err)
	for _, ev := range st.States {
		assert.Equal(t, types.RequestEventWritten, ev.State.Status, "Status flip for %s must survive", ev.EventID)
	}
}

func TestSaveRequestStateIfStatus(t *testing.T) {
	db := setupDB(t)

	written, err := db.SaveRequestStateIfStatus("missing", types.RequestPendingAck, &types.RequestState{})
	require.NoError(t, err)
	assert.Equal(t, false, written)

	require.NoError(t, db.SaveRequestState("r1", &types.RequestState{
		RequestID: "r1",
		Status:    types.RequestPendingAck,
	}))
	written, err = db.SaveRequestStateIfStatus("r1", types.RequestPendingAck, &types.RequestState{
		RequestID: "r1",
		Status:    types.RequestPending,
	})
	require.NoError(t, err)
	assert.Equal(t, true, written)

	// The record has advanced; a stale conditional write must not land.
	written, err = db.SaveRequestStateIfStatus("r1", types.RequestPendingAck, &types.RequestState{
		RequestID: "r1",
		Status:    types.RequestError,
	})
	require.NoError(t, err)
	assert.Equal(t, false, written)

	st, err := db.RequestState("r1")
	require.NoError(t, err)
	assert.Equal(t, types.RequestPending, st.Status)
}
