package taker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

// Notif is the application-facing notification a Taker actor emits.
type Notif interface{ isTakerNotif() }

// TradeRspNotif wraps a successfully accepted TradeResponse.
type TradeRspNotif struct{ Envelope trade.TradeResponseEnvelope }

func (TradeRspNotif) isTakerNotif() {}

// TradeRspErrorNotif wraps a TradeResponse that violated the acceptance
// rules, surfaced as an error rather than stored state.
type TradeRspErrorNotif struct{ Err error }

func (TradeRspErrorNotif) isTakerNotif() {}

// PeerNotif wraps a routed trade-engine-specific peer message.
type PeerNotif struct{ Envelope trade.PeerEnvelope }

func (PeerNotif) isTakerNotif() {}
