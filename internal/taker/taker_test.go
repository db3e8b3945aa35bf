package taker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/comms"
	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/relay"
	"github.com/klingon-exchange/n3xb-core/internal/router"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// fakeClient is a minimal in-memory relay.Client, mirroring the ones in
// internal/comms's and internal/maker's own tests.
type fakeClient struct {
	relays   []string
	sentDMs  []trade.PeerMessage
	notifyCh chan relay.Notification
}

func newFakeClient() *fakeClient {
	return &fakeClient{notifyCh: make(chan relay.Notification, 16)}
}

func (f *fakeClient) AddRelay(ctx context.Context, r relay.RelayURL, connect bool) error {
	f.relays = append(f.relays, r.URL)
	return nil
}
func (f *fakeClient) RemoveRelay(url string) error                 { return nil }
func (f *fakeClient) Relays() []string                             { return f.relays }
func (f *fakeClient) Connect(ctx context.Context, url string) error { return nil }
func (f *fakeClient) ConnectAll(ctx context.Context) error          { return nil }

func (f *fakeClient) Publish(ctx context.Context, event *relay.Event, powDifficulty uint64) (trade.RelaySet, error) {
	event.ID = "evt-" + time.Now().Format(time.RFC3339Nano)
	return trade.NewRelaySet(f.relays...), nil
}

func (f *fakeClient) QueryEvents(ctx context.Context, filter relay.Filter) ([]relay.Event, error) {
	return nil, nil
}
func (f *fakeClient) SeenOn(eventID string) (trade.RelaySet, error)            { return trade.NewRelaySet(), nil }
func (f *fakeClient) Delete(ctx context.Context, eventID, reason string) error { return nil }

func (f *fakeClient) SendDirectMessage(ctx context.Context, recipient trade.Pubkey, msg trade.PeerMessage) (string, error) {
	f.sentDMs = append(f.sentDMs, msg)
	return fmt.Sprintf("dm-%d", len(f.sentDMs)), nil
}

func (f *fakeClient) SubscribeDirectMessages(ctx context.Context, since time.Time) error { return nil }
func (f *fakeClient) Notifications() <-chan relay.Notification                          { return f.notifyCh }
func (f *fakeClient) Shutdown(ctx context.Context) error                                { close(f.notifyCh); return nil }

func sampleOrderEnvelope(makerID *identity.Identity) trade.OrderEnvelope {
	order := trade.Order{
		TradeUUID: trade.NewTradeUUID(),
		MakerObligation: trade.MakerObligationTerms{
			Kinds:  trade.NewObligationSet(trade.Bitcoin("")),
			Amount: decimal.NewFromInt(100000),
		},
		TakerObligation: trade.TakerObligationTerms{
			Kinds: trade.NewObligationSet(trade.Fiat("USD", "")),
		},
		EngineName: "test-engine",
	}
	return trade.OrderEnvelope{
		Order:   order,
		Pubkey:  makerID.Pubkey(),
		EventID: "order-evt",
		Relays:  trade.NewRelaySet("wss://a"),
	}
}

func sampleOffer() trade.Offer {
	return trade.Offer{
		OfferUUID: trade.NewTradeUUID(),
		MakerObligation: trade.OfferObligation{
			Kind:   trade.Bitcoin(""),
			Amount: decimal.NewFromInt(100000),
		},
		TakerObligation: trade.OfferObligation{
			Kind:   trade.Fiat("USD", ""),
			Amount: decimal.NewFromInt(5000),
		},
	}
}

// newTestTaker spins up a real Comms actor (over a fakeClient) plus a
// Taker actor on top of it, returning the taker's own identity alongside
// so tests can seal inbound DMs correctly addressed to it.
func newTestTaker(t *testing.T, order trade.OrderEnvelope, off trade.Offer) (*Access, *fakeClient, *identity.Identity) {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	client := newFakeClient()
	rtr := router.New()
	commsPath := filepath.Join(t.TempDir(), "comms.json")

	commsAccess, err := comms.New(context.Background(), id, client, rtr, commsPath, "test-engine", 0)
	require.NoError(t, err)
	t.Cleanup(commsAccess.Shutdown)

	takerPath := filepath.Join(t.TempDir(), order.Order.TradeUUID.String()+"-taker.json")
	access, err := New(context.Background(), commsAccess, order, off, takerPath)
	require.NoError(t, err)
	t.Cleanup(access.Shutdown)

	return access, client, id
}

func TestTakeOrderSendsOfferAndRecordsEventID(t *testing.T) {
	makerID, err := identity.New()
	require.NoError(t, err)
	order := sampleOrderEnvelope(makerID)
	off := sampleOffer()
	access, client, _ := newTestTaker(t, order, off)

	require.NoError(t, access.TakeOrder())
	require.Len(t, client.sentDMs, 1)
	assert.Equal(t, trade.MessageTypeTakerOffer, client.sentDMs[0].MessageType)
}

func TestInboundTradeResponseAcceptedAndNotified(t *testing.T) {
	makerID, err := identity.New()
	require.NoError(t, err)
	order := sampleOrderEnvelope(makerID)
	off := sampleOffer()
	access, client, takerID := newTestTaker(t, order, off)
	require.NoError(t, access.TakeOrder())

	notifCh := make(chan Notif, 4)
	access.RegisterNotifTx(notifCh)

	rsp := trade.NewAcceptResponse("dm-1")
	msg, err := trade.NewPeerMessage(nil, "order-evt", order.Order.TradeUUID, trade.MessageTypeTradeResponse, rsp)
	require.NoError(t, err)

	// Sealed from the maker's identity to the running taker's own
	// pubkey, matching how the running actor's DecryptDM(ownID, sender)
	// call derives its shared key.
	sealed, err := relay.EncryptDM(makerID, takerID.Pubkey(), *msg)
	require.NoError(t, err)

	client.notifyCh <- relay.EventNotification{
		Relay: "wss://a",
		Event: relay.Event{
			ID:      "rsp-evt-1",
			Kind:    relay.EventKindEncryptedDM,
			Pubkey:  makerID.Pubkey().String(),
			Content: string(sealed),
		},
	}

	select {
	case n := <-notifCh:
		got, ok := n.(TradeRspNotif)
		require.True(t, ok)
		assert.Equal(t, trade.StatusAccepted, got.Envelope.TradeResponse.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade response notification")
	}

	stored, found := access.QueryTradeRsp()
	require.True(t, found)
	assert.Equal(t, "dm-1", stored.TradeResponse.OfferEventID)
}

func TestInboundTradeResponseFromWrongSenderErrors(t *testing.T) {
	makerID, err := identity.New()
	require.NoError(t, err)
	impostorID, err := identity.New()
	require.NoError(t, err)
	order := sampleOrderEnvelope(makerID)
	off := sampleOffer()
	access, client, takerID := newTestTaker(t, order, off)
	require.NoError(t, access.TakeOrder())

	notifCh := make(chan Notif, 4)
	access.RegisterNotifTx(notifCh)

	rsp := trade.NewAcceptResponse("dm-1")
	msg, err := trade.NewPeerMessage(nil, "order-evt", order.Order.TradeUUID, trade.MessageTypeTradeResponse, rsp)
	require.NoError(t, err)

	sealed, err := relay.EncryptDM(impostorID, takerID.Pubkey(), *msg)
	require.NoError(t, err)

	client.notifyCh <- relay.EventNotification{
		Relay: "wss://a",
		Event: relay.Event{
			ID:      "rsp-evt-impostor",
			Kind:    relay.EventKindEncryptedDM,
			Pubkey:  impostorID.Pubkey().String(),
			Content: string(sealed),
		},
	}

	select {
	case n := <-notifCh:
		_, ok := n.(TradeRspErrorNotif)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade response error notification")
	}

	_, found := access.QueryTradeRsp()
	assert.False(t, found)
}
