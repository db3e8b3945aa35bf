package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

func TestRegisterAndRoute(t *testing.T) {
	r := New()
	tradeUUID := trade.NewTradeUUID()
	ch := make(chan trade.PeerEnvelope, 1)

	require.NoError(t, r.Register(tradeUUID, ch))

	msg := trade.PeerMessage{TradeUUID: tradeUUID, MessageType: trade.MessageTypeTakerOffer}
	require.NoError(t, r.HandlePeerMessage(trade.Pubkey{}, "evt1", trade.NewRelaySet("wss://r1"), msg))

	received := <-ch
	assert.Equal(t, "evt1", received.EventID)
}

func TestDuplicateRegisterErrors(t *testing.T) {
	r := New()
	tradeUUID := trade.NewTradeUUID()
	ch := make(chan trade.PeerEnvelope, 1)
	require.NoError(t, r.Register(tradeUUID, ch))
	assert.Error(t, r.Register(tradeUUID, ch))
}

func TestUnregisterMissingErrors(t *testing.T) {
	r := New()
	assert.Error(t, r.Unregister(trade.NewTradeUUID()))
}

func TestFallbackUsedWhenNoPerTradeChannel(t *testing.T) {
	r := New()
	fallback := make(chan trade.PeerEnvelope, 1)
	r.RegisterFallback(fallback)

	msg := trade.PeerMessage{TradeUUID: trade.NewTradeUUID(), MessageType: trade.MessageTypeTakerOffer}
	require.NoError(t, r.HandlePeerMessage(trade.Pubkey{}, "evt2", nil, msg))

	received := <-fallback
	assert.Equal(t, "evt2", received.EventID)
}

func TestNoChannelAndNoFallbackErrors(t *testing.T) {
	r := New()
	msg := trade.PeerMessage{TradeUUID: trade.NewTradeUUID(), MessageType: trade.MessageTypeTakerOffer}
	assert.Error(t, r.HandlePeerMessage(trade.Pubkey{}, "evt3", nil, msg))
}

func TestUnregisterFallbackStopsRouting(t *testing.T) {
	r := New()
	fallback := make(chan trade.PeerEnvelope, 1)
	r.RegisterFallback(fallback)
	r.UnregisterFallback()

	msg := trade.PeerMessage{TradeUUID: trade.NewTradeUUID(), MessageType: trade.MessageTypeTakerOffer}
	assert.Error(t, r.HandlePeerMessage(trade.Pubkey{}, "evt4", nil, msg))
}
