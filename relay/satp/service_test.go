package satp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/db/kv"
	"github.com/dlt-interop/relay/relay/types"
	"github.com/dlt-interop/relay/relay/wire"
	"github.com/dlt-interop/relay/testing/assert"
	"github.com/dlt-interop/relay/testing/require"
	"github.com/pkg/errors"
)

// gatewayDriver reports every requested side-effect as done by calling
// back into its gateway's SendAssetStatus, the way a real driver would.
type gatewayDriver struct {
	gw      *Service
	lockErr error
}

func (d *gatewayDriver) report(sessionID, status string) error {
	ack, err := d.gw.SendAssetStatus(context.Background(), &types.SendAssetStatus{
		Header: types.SATPHeader{SessionID: sessionID},
		Status: status,
	})
	if err != nil {
		return err
	}
	if !ack.OK() {
		return errors.New(ack.Message)
	}
	return nil
}

func (d *gatewayDriver) PerformLock(_ context.Context, _, sessionID string) error {
	if d.lockErr != nil {
		return d.lockErr
	}
	return d.report(sessionID, StatusLocked)
}

func (d *gatewayDriver) CreateAsset(_ context.Context, _, sessionID string) error {
	return d.report(sessionID, StatusCreated)
}

func (d *gatewayDriver) Extinguish(_ context.Context, _, sessionID string) error {
	return d.report(sessionID, StatusExtinguished)
}

func (d *gatewayDriver) AssignAsset(_ context.Context, _, sessionID string) error {
	return d.report(sessionID, StatusFinalized)
}

func (d *gatewayDriver) RequestDriverState(_ context.Context, _ string, _ *types.Query) error {
	return nil
}

func (d *gatewayDriver) SubscribeEvent(_ context.Context, _ string, _ *types.EventSubscription) error {
	return nil
}

func (d *gatewayDriver) SignEventSubscription(_ context.Context, _ string, es *types.EventSubscription) (*types.Query, error) {
	q := es.Query
	return &q, nil
}

func (d *gatewayDriver) WriteExternalState(_ context.Context, _ *types.WriteExternalStateMessage) error {
	return nil
}

// loopbackPeers routes every SATP call to the counterpart gateway
// in-process.
type loopbackPeers struct {
	counterpart *Service
}

func (p *loopbackPeers) SATP(_ config.Location) (wire.SATPClient, error) {
	return p.counterpart, nil
}

func (p *loopbackPeers) RequestState(_ context.Context, _ config.Location, _ *types.Query) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) SendState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) SendDriverState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) SubscribeEvent(_ context.Context, _ config.Location, _ *types.EventSubscription) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) SendSubscriptionStatus(_ context.Context, _ config.Location, _ *types.Ack) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) SendDriverSubscriptionStatus(_ context.Context, _ config.Location, _ *types.Ack) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

func (p *loopbackPeers) PublishState(_ context.Context, _ config.Location, _ *types.ViewPayload) (*types.Ack, error) {
	return &types.Ack{Status: types.AckOK}, nil
}

type gateway struct {
	svc    *Service
	db     *kv.Store
	driver *gatewayDriver
}

func newGateway(t *testing.T, name, peer string) *gateway {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
name: %s
host: 127.0.0.1
port: "9080"
relays:
  %s:
    hostname: %s.example.com
    port: "9081"
`, name, peer, peer)), 0600))
	resolver, err := config.Load(cfgPath)
	require.NoError(t, err)

	db, err := kv.NewKVStore(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	driver := &gatewayDriver{}
	peers := &loopbackPeers{}
	svc := NewService(context.Background(), &Config{
		LocalDB:  db,
		Drivers:  driver,
		Peers:    peers,
		Resolver: resolver,
	})
	driver.gw = svc
	return &gateway{svc: svc, db: db, driver: driver}
}

// twoGateways wires a sender and a receiver gateway back to back.
func twoGateways(t *testing.T) (*gateway, *gateway) {
	t.Helper()
	sender := newGateway(t, "GatewayA", "GatewayB")
	receiver := newGateway(t, "GatewayB", "GatewayA")
	sender.svc.peers.(*loopbackPeers).counterpart = receiver.svc
	receiver.svc.peers.(*loopbackPeers).counterpart = sender.svc
	return sender, receiver
}

func waitForPhase(t *testing.T, db *kv.Store, sessionID string, want types.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last types.Phase = -1
	for time.Now().Before(deadline) {
		sess, err := db.SATPSession(sessionID)
		if err == nil {
			last = sess.Phase
			if last == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s: phase %s, want %s", sessionID, last, want)
}

func transferRequest() *types.TransferRequest {
	return &types.TransferRequest{
		AssetProfileID:     "bond-profile-1",
		AssetID:            "bond:6500",
		SenderNetworkID:    "network1",
		RecipientNetworkID: "network2",
		RecipientRelay:     "GatewayB",
		BeneficiaryPubkey:  "beneficiary-pub",
		OriginatorPubkey:   "originator-pub",
	}
}

func TestTransfer_CompletesOnBothGateways(t *testing.T) {
	sender, receiver := twoGateways(t)

	ack, err := sender.svc.InitiateTransfer(context.Background(), transferRequest())
	require.NoError(t, err)
	require.Equal(t, types.AckOK, ack.Status)
	sessionID := ack.RequestID

	waitForPhase(t, sender.db, sessionID, types.PhaseCompleted)
	waitForPhase(t, receiver.db, sessionID, types.PhaseCompleted)

	senderSess, err := sender.db.SATPSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleSender, senderSess.Role)
	assert.Equal(t, "GatewayB", senderSess.CounterpartyRelay)

	receiverSess, err := receiver.db.SATPSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleReceiver, receiverSess.Role)
	assert.Equal(t, "GatewayA", receiverSess.CounterpartyRelay)
	assert.Equal(t, "network2", receiverSess.NetworkID)
	assert.Equal(t, "bond-profile-1", receiverSess.AssetProfileID)
}

func TestTransfer_ReplayedMessageIsRejected(t *testing.T) {
	sender, receiver := twoGateways(t)

	ack, err := sender.svc.InitiateTransfer(context.Background(), transferRequest())
	require.NoError(t, err)
	sessionID := ack.RequestID
	waitForPhase(t, sender.db, sessionID, types.PhaseCompleted)
	waitForPhase(t, receiver.db, sessionID, types.PhaseCompleted)

	// A message for an earlier phase arriving again must not disturb
	// the terminal state.
	replayAck, err := sender.svc.AckCommence(context.Background(), &types.AckCommence{
		Header: types.SATPHeader{SessionID: sessionID},
	})
	require.NoError(t, err)
	assert.Equal(t, types.AckError, replayAck.Status)

	sess, err := sender.db.SATPSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, sess.Phase)
}

func TestTransfer_LockFailureFailsSession(t *testing.T) {
	sender, _ := twoGateways(t)
	sender.driver.lockErr = errors.New("asset already locked")

	ack, err := sender.svc.InitiateTransfer(context.Background(), transferRequest())
	require.NoError(t, err)
	sessionID := ack.RequestID

	waitForPhase(t, sender.db, sessionID, types.PhaseFailed)
	sess, err := sender.db.SATPSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "asset already locked", sess.FailureMessage)
}

func TestInitiateTransfer_UnknownRecipient(t *testing.T) {
	sender, _ := twoGateways(t)
	req := transferRequest()
	req.RecipientRelay = "GatewayX"

	ack, err := sender.svc.InitiateTransfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.AckError, ack.Status)
}

func TestInitiateTransfer_MissingRecipient(t *testing.T) {
	sender, _ := twoGateways(t)
	req := transferRequest()
	req.RecipientRelay = ""

	ack, err := sender.svc.InitiateTransfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.AckError, ack.Status)
}

func TestSendAssetStatus_UnexpectedStatus(t *testing.T) {
	sender, receiver := twoGateways(t)

	ack, err := sender.svc.InitiateTransfer(context.Background(), transferRequest())
	require.NoError(t, err)
	sessionID := ack.RequestID
	waitForPhase(t, sender.db, sessionID, types.PhaseCompleted)
	waitForPhase(t, receiver.db, sessionID, types.PhaseCompleted)

	statusAck, err := sender.svc.SendAssetStatus(context.Background(), &types.SendAssetStatus{
		Header: types.SATPHeader{SessionID: sessionID},
		Status: StatusLocked,
	})
	require.NoError(t, err)
	assert.Equal(t, types.AckError, statusAck.Status)
}
